package detect

import (
	"fmt"
	"math"
	"sort"
)

// decodeOutput converts a raw YOLO output tensor into detections in original
// image coordinates. The tensor layout is [1, 4+numClasses, anchors]: four
// box channels (cx, cy, w, h in input pixels) followed by one score channel
// per class.
func decodeOutput(output []float32, numClasses, inputSize int, origWidth, origHeight, threshold, iouThreshold float64, classNames []string) []Detection {
	channels := 4 + numClasses
	if channels <= 4 || len(output) == 0 || len(output)%channels != 0 {
		return nil
	}
	anchors := len(output) / channels

	scaleX := origWidth / float64(inputSize)
	scaleY := origHeight / float64(inputSize)

	var boxes []Detection
	for i := 0; i < anchors; i++ {
		// Class with the highest score for this anchor
		classID, prob := 0, float32(0.0)
		for j := 0; j < numClasses; j++ {
			if curr := output[(4+j)*anchors+i]; curr > prob {
				prob = curr
				classID = j
			}
		}

		if float64(prob) < threshold {
			continue
		}

		xc := float64(output[i])
		yc := float64(output[anchors+i])
		w := float64(output[2*anchors+i])
		h := float64(output[3*anchors+i])

		boxes = append(boxes, Detection{
			X1:         clamp((xc-w/2)*scaleX, 0, origWidth),
			Y1:         clamp((yc-h/2)*scaleY, 0, origHeight),
			X2:         clamp((xc+w/2)*scaleX, 0, origWidth),
			Y2:         clamp((yc+h/2)*scaleY, 0, origHeight),
			Confidence: float64(prob),
			ClassID:    classID,
			ClassName:  className(classNames, classID),
		})
	}

	// Highest confidence first, then greedy suppression
	sort.Slice(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})

	var detections []Detection
	suppressed := make([]bool, len(boxes))
	for i := 0; i < len(boxes); i++ {
		if suppressed[i] {
			continue
		}
		detections = append(detections, boxes[i])
		for j := i + 1; j < len(boxes); j++ {
			if suppressed[j] {
				continue
			}
			if iou(boxes[i], boxes[j]) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return detections
}

// className maps a class index to its configured name, falling back to a
// synthetic name when the model has more classes than the config lists.
func className(classNames []string, classID int) string {
	if classID >= 0 && classID < len(classNames) {
		return classNames[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}

// iou computes intersection over union of two boxes.
func iou(a, b Detection) float64 {
	x1 := math.Max(a.X1, b.X1)
	y1 := math.Max(a.Y1, b.Y1)
	x2 := math.Min(a.X2, b.X2)
	y2 := math.Min(a.Y2, b.Y2)

	intersection := math.Max(0, x2-x1) * math.Max(0, y2-y1)
	areaA := (a.X2 - a.X1) * (a.Y2 - a.Y1)
	areaB := (b.X2 - b.X1) * (b.Y2 - b.Y1)

	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
