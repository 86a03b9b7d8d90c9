package detect

import "testing"

func TestAnchorCount(t *testing.T) {
	// 80x80 + 40x40 + 20x20 grids for the default input
	if got := anchorCount(640); got != 8400 {
		t.Errorf("anchorCount(640) = %d, want 8400", got)
	}
	if got := anchorCount(320); got != 2100 {
		t.Errorf("anchorCount(320) = %d, want 2100", got)
	}
}

func TestSharedLibPathOverride(t *testing.T) {
	path, err := sharedLibPath("/opt/onnx/libonnxruntime.so")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/opt/onnx/libonnxruntime.so" {
		t.Errorf("override ignored, got %s", path)
	}
}
