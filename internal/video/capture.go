package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
)

const captureJPEGQuality = 4 // mjpeg q:v scale, lower is better

// CaptureFrameJPEG grabs a single JPEG frame from a capture source: a
// V4L2 device, an RTSP URL or anything else ffmpeg can open.
func (f *FFmpegWrapper) CaptureFrameJPEG(ctx context.Context, source string) ([]byte, error) {
	if err := f.ValidateInput(ctx, source); err != nil {
		return nil, fmt.Errorf("invalid capture source: %w", err)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
	}
	args = append(args, inputArgs(source)...)
	args = append(args,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", fmt.Sprintf("%d", captureJPEGQuality),
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd := f.BuildCommand(ctx, args)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg capture failed: %w (%s)", err, firstLine(stderr.String()))
	}

	frameData := stdout.Bytes()
	if len(frameData) == 0 {
		return nil, fmt.Errorf("no frame data captured from %s", source)
	}

	// Validate it decodes as an image
	if _, _, err := image.Decode(bytes.NewReader(frameData)); err != nil {
		return nil, fmt.Errorf("invalid frame data: %w", err)
	}

	return frameData, nil
}
