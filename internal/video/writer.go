package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
)

const defaultEncodeFPS = 25.0

// FrameWriter encodes a stream of raw RGB frames into an H.264 MP4 over
// an ffmpeg pipe. Frames must all have the dimensions the writer was
// opened with.
type FrameWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	width  int
	height int
	buf    []byte
}

// OpenFrameWriter starts an encoder writing to path. A non-positive fps
// falls back to a sane default, since probed rates are advisory.
func (f *FFmpegWrapper) OpenFrameWriter(ctx context.Context, path string, width, height int, fps float64) (*FrameWriter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", width, height)
	}
	if fps <= 0 {
		fps = defaultEncodeFPS
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%.3f", fps),
		"-i", "-",
		// yuv420p needs even dimensions; pad rather than crop
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y",
		path,
	}

	writer := &FrameWriter{
		cmd:    f.BuildCommand(ctx, args),
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3),
	}
	writer.cmd.Stderr = &writer.stderr

	stdin, err := writer.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open encoder pipe: %w", err)
	}
	writer.stdin = stdin

	if err := writer.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}

	return writer, nil
}

// Write encodes one frame.
func (w *FrameWriter) Write(img image.Image) error {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Dx() != w.width || rgba.Bounds().Dy() != w.height {
		converted := image.NewRGBA(image.Rect(0, 0, w.width, w.height))
		draw.Draw(converted, converted.Bounds(), img, img.Bounds().Min, draw.Src)
		rgba = converted
	}

	for i := 0; i < w.width*w.height; i++ {
		w.buf[i*3] = rgba.Pix[i*4]
		w.buf[i*3+1] = rgba.Pix[i*4+1]
		w.buf[i*3+2] = rgba.Pix[i*4+2]
	}

	if _, err := w.stdin.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write frame: %w (%s)", err, firstLine(w.stderr.String()))
	}
	return nil
}

// Close finishes the encode and waits for the file to be complete.
func (w *FrameWriter) Close() error {
	w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder exited: %w (%s)", err, firstLine(w.stderr.String()))
	}
	return nil
}

// Abort kills the encoder without finalizing the output. Use it on
// failure paths where the file is going to be deleted anyway.
func (w *FrameWriter) Abort() {
	w.stdin.Close()
	if w.cmd.Process != nil {
		w.cmd.Process.Kill()
	}
	w.cmd.Wait()
}
