package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
)

// FrameReader decodes a video into a stream of raw RGB frames over an
// ffmpeg pipe. Frames come out strictly in order; the stream ends when
// the decoder reaches EOF, whatever the container claimed up front.
type FrameReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	width  int
	height int
	buf    []byte
}

// OpenFrameReader starts decoding a file at its probed dimensions.
func (f *FFmpegWrapper) OpenFrameReader(ctx context.Context, path string, width, height int) (*FrameReader, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", width, height)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	}

	reader := &FrameReader{
		cmd:    f.BuildCommand(ctx, args),
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3),
	}
	reader.cmd.Stderr = &reader.stderr

	stdout, err := reader.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open decoder pipe: %w", err)
	}
	reader.stdout = stdout

	if err := reader.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start decoder: %w", err)
	}

	return reader, nil
}

// Next returns the next decoded frame, or io.EOF when the stream ends.
// A truncated trailing frame also ends the stream.
func (r *FrameReader) Next() (*image.RGBA, error) {
	_, err := io.ReadFull(r.stdout, r.buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	for i := 0; i < r.width*r.height; i++ {
		img.Pix[i*4] = r.buf[i*3]
		img.Pix[i*4+1] = r.buf[i*3+1]
		img.Pix[i*4+2] = r.buf[i*3+2]
		img.Pix[i*4+3] = 255
	}

	return img, nil
}

// Close tears the decoder down. Call it on every path, including after
// io.EOF.
func (r *FrameReader) Close() error {
	r.stdout.Close()
	err := r.cmd.Wait()
	if err != nil && r.stderr.Len() > 0 {
		return fmt.Errorf("decoder exited: %w (%s)", err, firstLine(r.stderr.String()))
	}
	// A non-zero exit after we stopped reading is expected
	return nil
}
