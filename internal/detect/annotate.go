package detect

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var labelFont *truetype.Font

// init sets up the font used for detection labels.
func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// boxPalette gives each class index a stable color.
var boxPalette = []color.RGBA{
	{R: 231, G: 76, B: 60, A: 255},
	{R: 46, G: 204, B: 113, A: 255},
	{R: 52, G: 152, B: 219, A: 255},
	{R: 241, G: 196, B: 15, A: 255},
	{R: 155, G: 89, B: 182, A: 255},
	{R: 230, G: 126, B: 34, A: 255},
}

const (
	boxLineWidth  = 2.0
	labelFontSize = 14.0
	labelPadding  = 4.0
)

// Annotate renders detection boxes and labels onto a copy of img. The
// returned raster keeps the input's pixel dimensions.
func Annotate(img image.Image, detections []Detection) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: labelFontSize}))

	for _, det := range detections {
		c := classColor(det.ClassID)
		drawBoxEdges(dc, det, c)
		drawLabel(dc, det, c)
	}

	return dc.Image()
}

func classColor(classID int) color.RGBA {
	idx := classID % len(boxPalette)
	if idx < 0 {
		idx += len(boxPalette)
	}
	return boxPalette[idx]
}

// drawBoxEdges strokes the four edges of the detection box.
func drawBoxEdges(dc *gg.Context, det Detection, c color.Color) {
	dc.SetColor(c)

	dc.DrawLine(det.X1, det.Y1, det.X2, det.Y1)
	dc.SetLineWidth(boxLineWidth)
	dc.Stroke()

	dc.DrawLine(det.X1, det.Y1, det.X1, det.Y2)
	dc.SetLineWidth(boxLineWidth)
	dc.Stroke()

	dc.DrawLine(det.X2, det.Y1, det.X2, det.Y2)
	dc.SetLineWidth(boxLineWidth)
	dc.Stroke()

	dc.DrawLine(det.X1, det.Y2, det.X2, det.Y2)
	dc.SetLineWidth(boxLineWidth)
	dc.Stroke()
}

// drawLabel renders "<class> <confidence>" in a filled tag anchored to the
// top-left box corner, dropping inside the box when there is no room above.
func drawLabel(dc *gg.Context, det Detection, c color.Color) {
	label := fmt.Sprintf("%s %.2f", det.ClassName, det.Confidence)
	w, h := dc.MeasureString(label)

	tagX := det.X1
	tagY := det.Y1 - h - 2*labelPadding
	if tagY < 0 {
		tagY = det.Y1
	}

	dc.SetColor(c)
	dc.DrawRectangle(tagX, tagY, w+2*labelPadding, h+2*labelPadding)
	dc.Fill()

	dc.SetColor(color.White)
	dc.DrawString(label, tagX+labelPadding, tagY+h+labelPadding/2)
}
