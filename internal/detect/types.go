package detect

import (
	"encoding/json"
	"math"
)

// Detection is one detected object in an image or video frame.
// Coordinates are pixels in the original image, x1 < x2 and y1 < y2.
type Detection struct {
	X1         float64
	Y1         float64
	X2         float64
	Y2         float64
	Confidence float64
	ClassID    int
	ClassName  string
}

// MarshalJSON emits the wire form: confidence rounded to 3 decimals,
// box coordinates to 2.
func (d Detection) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ClassName  string     `json:"class_name"`
		Confidence float64    `json:"confidence"`
		BBox       [4]float64 `json:"bbox"`
	}{
		ClassName:  d.ClassName,
		Confidence: roundTo(d.Confidence, 3),
		BBox: [4]float64{
			roundTo(d.X1, 2),
			roundTo(d.Y1, 2),
			roundTo(d.X2, 2),
			roundTo(d.Y2, 2),
		},
	})
}

// UnmarshalJSON accepts the wire form produced by MarshalJSON.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var wire struct {
		ClassName  string     `json:"class_name"`
		Confidence float64    `json:"confidence"`
		BBox       [4]float64 `json:"bbox"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.ClassName = wire.ClassName
	d.Confidence = wire.Confidence
	d.X1, d.Y1, d.X2, d.Y2 = wire.BBox[0], wire.BBox[1], wire.BBox[2], wire.BBox[3]
	return nil
}

// Summary aggregates a detection list for the response body.
type Summary struct {
	TotalDetections int            `json:"total_detections"`
	ClassCounts     map[string]int `json:"class_counts"`
}

// Summarize counts detections per class name.
func Summarize(detections []Detection) Summary {
	counts := make(map[string]int)
	for _, d := range detections {
		counts[d.ClassName]++
	}
	return Summary{
		TotalDetections: len(detections),
		ClassCounts:     counts,
	}
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
