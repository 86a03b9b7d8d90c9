package detect

import (
	"math"
	"testing"
)

var testClassNames = []string{"poubelle_pleine", "poubelle_vide"}

// buildOutput allocates a raw [4+numClasses, anchors] tensor.
func buildOutput(numClasses, anchors int) []float32 {
	return make([]float32, (4+numClasses)*anchors)
}

// setAnchor writes one anchor's box and class scores into the tensor.
func setAnchor(out []float32, anchors, i int, cx, cy, w, h float32, scores ...float32) {
	out[i] = cx
	out[anchors+i] = cy
	out[2*anchors+i] = w
	out[3*anchors+i] = h
	for j, s := range scores {
		out[(4+j)*anchors+i] = s
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-5
}

func TestDecodeOutputSingleDetection(t *testing.T) {
	anchors := 4
	out := buildOutput(2, anchors)
	setAnchor(out, anchors, 0, 320, 320, 100, 50, 0.9, 0.1)

	detections := decodeOutput(out, 2, 640, 640, 640, 0.25, 0.7, testClassNames)
	if len(detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detections))
	}

	d := detections[0]
	if !almostEqual(d.X1, 270) || !almostEqual(d.Y1, 295) || !almostEqual(d.X2, 370) || !almostEqual(d.Y2, 345) {
		t.Errorf("unexpected box: (%v, %v, %v, %v)", d.X1, d.Y1, d.X2, d.Y2)
	}
	if !almostEqual(d.Confidence, 0.9) {
		t.Errorf("expected confidence 0.9, got %v", d.Confidence)
	}
	if d.ClassID != 0 {
		t.Errorf("expected class 0, got %d", d.ClassID)
	}
	if d.ClassName != "poubelle_pleine" {
		t.Errorf("expected class name poubelle_pleine, got %s", d.ClassName)
	}
}

func TestDecodeOutputArgmaxPicksBestClass(t *testing.T) {
	anchors := 2
	out := buildOutput(2, anchors)
	setAnchor(out, anchors, 0, 100, 100, 40, 40, 0.2, 0.8)

	detections := decodeOutput(out, 2, 640, 640, 640, 0.25, 0.7, testClassNames)
	if len(detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detections))
	}
	if detections[0].ClassID != 1 {
		t.Errorf("expected class 1, got %d", detections[0].ClassID)
	}
	if detections[0].ClassName != "poubelle_vide" {
		t.Errorf("expected class name poubelle_vide, got %s", detections[0].ClassName)
	}
}

func TestDecodeOutputThresholdFilters(t *testing.T) {
	anchors := 4
	out := buildOutput(2, anchors)
	setAnchor(out, anchors, 0, 320, 320, 100, 100, 0.2, 0.1)
	setAnchor(out, anchors, 1, 100, 100, 40, 40, 0.3, 0.0)

	detections := decodeOutput(out, 2, 640, 640, 640, 0.25, 0.7, testClassNames)
	if len(detections) != 1 {
		t.Fatalf("expected 1 detection above threshold, got %d", len(detections))
	}
	if !almostEqual(detections[0].Confidence, 0.3) {
		t.Errorf("expected the 0.3 box to survive, got %v", detections[0].Confidence)
	}
}

func TestDecodeOutputScalesToOriginalSize(t *testing.T) {
	anchors := 1
	out := buildOutput(1, anchors)
	setAnchor(out, anchors, 0, 320, 160, 320, 160, 0.9)

	// 1280x480 original against a 640 input: x doubles, y shrinks to 3/4
	detections := decodeOutput(out, 1, 640, 1280, 480, 0.25, 0.7, []string{"only"})
	if len(detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detections))
	}

	d := detections[0]
	if !almostEqual(d.X1, 320) || !almostEqual(d.X2, 960) {
		t.Errorf("unexpected x range: %v..%v", d.X1, d.X2)
	}
	if !almostEqual(d.Y1, 60) || !almostEqual(d.Y2, 180) {
		t.Errorf("unexpected y range: %v..%v", d.Y1, d.Y2)
	}
}

func TestDecodeOutputClampsToBounds(t *testing.T) {
	anchors := 2
	out := buildOutput(1, anchors)
	setAnchor(out, anchors, 0, 10, 10, 100, 100, 0.9)
	setAnchor(out, anchors, 1, 630, 630, 100, 100, 0.8)

	detections := decodeOutput(out, 1, 640, 640, 640, 0.25, 0.7, []string{"only"})
	if len(detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(detections))
	}

	for _, d := range detections {
		if d.X1 < 0 || d.Y1 < 0 || d.X2 > 640 || d.Y2 > 640 {
			t.Errorf("box escapes image bounds: (%v, %v, %v, %v)", d.X1, d.Y1, d.X2, d.Y2)
		}
	}
	if !almostEqual(detections[0].X1, 0) || !almostEqual(detections[0].Y1, 0) {
		t.Errorf("expected top-left clamp to 0, got (%v, %v)", detections[0].X1, detections[0].Y1)
	}
	if !almostEqual(detections[1].X2, 640) || !almostEqual(detections[1].Y2, 640) {
		t.Errorf("expected bottom-right clamp to 640, got (%v, %v)", detections[1].X2, detections[1].Y2)
	}
}

func TestDecodeOutputNMSSuppressesOverlap(t *testing.T) {
	anchors := 3
	out := buildOutput(2, anchors)
	// Two near-identical boxes with different classes plus one far away.
	// Suppression is class agnostic, so only the strongest of the pair and
	// the distant box survive.
	setAnchor(out, anchors, 0, 320, 320, 100, 100, 0.9, 0.0)
	setAnchor(out, anchors, 1, 322, 320, 100, 100, 0.0, 0.8)
	setAnchor(out, anchors, 2, 100, 100, 40, 40, 0.7, 0.0)

	detections := decodeOutput(out, 2, 640, 640, 640, 0.25, 0.7, testClassNames)
	if len(detections) != 2 {
		t.Fatalf("expected 2 detections after suppression, got %d", len(detections))
	}
	if !almostEqual(detections[0].Confidence, 0.9) {
		t.Errorf("expected the 0.9 box to win the overlap, got %v", detections[0].Confidence)
	}
	if !almostEqual(detections[1].Confidence, 0.7) {
		t.Errorf("expected the distant 0.7 box to survive, got %v", detections[1].Confidence)
	}
}

func TestDecodeOutputOrderedByConfidence(t *testing.T) {
	anchors := 3
	out := buildOutput(1, anchors)
	setAnchor(out, anchors, 0, 100, 100, 40, 40, 0.5)
	setAnchor(out, anchors, 1, 300, 300, 40, 40, 0.9)
	setAnchor(out, anchors, 2, 500, 500, 40, 40, 0.7)

	detections := decodeOutput(out, 1, 640, 640, 640, 0.25, 0.7, []string{"only"})
	if len(detections) != 3 {
		t.Fatalf("expected 3 detections, got %d", len(detections))
	}
	for i := 1; i < len(detections); i++ {
		if detections[i].Confidence > detections[i-1].Confidence {
			t.Errorf("detections not sorted by confidence: %v before %v",
				detections[i-1].Confidence, detections[i].Confidence)
		}
	}
}

func TestDecodeOutputMalformedTensor(t *testing.T) {
	if got := decodeOutput(nil, 2, 640, 640, 640, 0.25, 0.7, testClassNames); got != nil {
		t.Errorf("expected nil for empty tensor, got %v", got)
	}
	// Length not divisible by channel count
	if got := decodeOutput(make([]float32, 25), 2, 640, 640, 640, 0.25, 0.7, testClassNames); got != nil {
		t.Errorf("expected nil for misaligned tensor, got %v", got)
	}
	if got := decodeOutput(make([]float32, 24), 0, 640, 640, 640, 0.25, 0.7, nil); got != nil {
		t.Errorf("expected nil for zero classes, got %v", got)
	}
}

func TestClassNameFallback(t *testing.T) {
	if got := className(testClassNames, 1); got != "poubelle_vide" {
		t.Errorf("expected poubelle_vide, got %s", got)
	}
	if got := className(testClassNames, 7); got != "class_7" {
		t.Errorf("expected class_7 fallback, got %s", got)
	}
	if got := className(nil, 0); got != "class_0" {
		t.Errorf("expected class_0 fallback for empty names, got %s", got)
	}
}

func TestIOU(t *testing.T) {
	a := Detection{X1: 0, Y1: 0, X2: 100, Y2: 100}
	if got := iou(a, a); !almostEqual(got, 1.0) {
		t.Errorf("identical boxes should score 1.0, got %v", got)
	}

	b := Detection{X1: 200, Y1: 200, X2: 300, Y2: 300}
	if got := iou(a, b); got != 0 {
		t.Errorf("disjoint boxes should score 0, got %v", got)
	}

	c := Detection{X1: 50, Y1: 0, X2: 150, Y2: 100}
	if got := iou(a, c); !almostEqual(got, 1.0/3.0) {
		t.Errorf("expected 1/3 overlap, got %v", got)
	}
}
