package video

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFrameReaderCountsFrames(t *testing.T) {
	ffmpeg := setupTestFFmpeg(t)
	path := generateTestVideo(t, ffmpeg, 8, "64x48")

	reader, err := ffmpeg.OpenFrameReader(context.Background(), path, 64, 48)
	if err != nil {
		t.Fatalf("OpenFrameReader failed: %v", err)
	}
	defer reader.Close()

	frames := 0
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed at frame %d: %v", frames, err)
		}
		if frame.Bounds().Dx() != 64 || frame.Bounds().Dy() != 48 {
			t.Fatalf("Frame %d has size %dx%d", frames, frame.Bounds().Dx(), frame.Bounds().Dy())
		}
		frames++
	}

	if frames != 8 {
		t.Errorf("Expected 8 frames, got %d", frames)
	}
}

func TestFrameReaderInvalidDimensions(t *testing.T) {
	ffmpeg := setupTestFFmpeg(t)

	if _, err := ffmpeg.OpenFrameReader(context.Background(), "whatever.mp4", 0, 48); err == nil {
		t.Error("Expected an error for zero width")
	}
}

func TestFrameWriterRoundTrip(t *testing.T) {
	ffmpeg := setupTestFFmpeg(t)
	if ffmpeg.FFprobePath() == "" {
		t.Skip("ffprobe not available")
	}

	path := filepath.Join(t.TempDir(), "encoded.mp4")
	writer, err := ffmpeg.OpenFrameWriter(context.Background(), path, 64, 48, 10)
	if err != nil {
		t.Fatalf("OpenFrameWriter failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		frame := image.NewRGBA(image.Rect(0, 0, 64, 48))
		shade := color.RGBA{R: uint8(40 * i), G: 80, B: 120, A: 255}
		for y := 0; y < 48; y++ {
			for x := 0; x < 64; x++ {
				frame.SetRGBA(x, y, shade)
			}
		}
		if err := writer.Write(frame); err != nil {
			t.Fatalf("Write failed at frame %d: %v", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The encoded file probes back with the same geometry
	info, err := ffmpeg.Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe of encoded file failed: %v", err)
	}
	if info.Width != 64 || info.Height != 48 {
		t.Errorf("Encoded video is %dx%d, want 64x48", info.Width, info.Height)
	}
	if info.TotalFrames != 5 {
		t.Errorf("Encoded video has %d frames, want 5", info.TotalFrames)
	}
}

func TestFrameWriterOddDimensions(t *testing.T) {
	ffmpeg := setupTestFFmpeg(t)

	path := filepath.Join(t.TempDir(), "odd.mp4")
	writer, err := ffmpeg.OpenFrameWriter(context.Background(), path, 63, 47, 10)
	if err != nil {
		t.Fatalf("OpenFrameWriter failed: %v", err)
	}

	frame := image.NewRGBA(image.Rect(0, 0, 63, 47))
	if err := writer.Write(frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if stat, err := os.Stat(path); err != nil || stat.Size() == 0 {
		t.Error("Odd-dimension encode should still produce a file")
	}
}

func TestFrameWriterAbort(t *testing.T) {
	ffmpeg := setupTestFFmpeg(t)

	path := filepath.Join(t.TempDir(), "aborted.mp4")
	writer, err := ffmpeg.OpenFrameWriter(context.Background(), path, 64, 48, 10)
	if err != nil {
		t.Fatalf("OpenFrameWriter failed: %v", err)
	}

	if err := writer.Write(image.NewRGBA(image.Rect(0, 0, 64, 48))); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Abort must not hang or panic
	writer.Abort()
}

func TestCaptureFrameJPEGFromFile(t *testing.T) {
	ffmpeg := setupTestFFmpeg(t)
	path := generateTestVideo(t, ffmpeg, 5, "64x48")

	data, err := ffmpeg.CaptureFrameJPEG(context.Background(), path)
	if err != nil {
		t.Fatalf("CaptureFrameJPEG failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Captured frame is empty")
	}

	// JPEG magic bytes
	if data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("Captured frame is not a JPEG")
	}
}
