package detect

import (
	"image"

	"github.com/disintegration/imaging"
)

// prepareInput resizes an image to the model's square input and lays it out
// as CHW float32 normalized to [0,1].
func prepareInput(img image.Image, inputSize int) []float32 {
	resized := imaging.Resize(img, inputSize, inputSize, imaging.Linear)

	channelSize := inputSize * inputSize
	buffer := make([]float32, channelSize*3)

	i := 0
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			buffer[i] = float32(r>>8) / 255.0
			buffer[channelSize+i] = float32(g>>8) / 255.0
			buffer[2*channelSize+i] = float32(b>>8) / 255.0
			i++
		}
	}

	return buffer
}
