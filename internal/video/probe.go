package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Info describes a video stream as reported by ffprobe. FPS and
// TotalFrames are advisory; container metadata lies often enough that
// the frame loop trusts only the decoder's EOF.
type Info struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	TotalFrames int     `json:"total_frames"`
	Duration    float64 `json:"duration_seconds,omitempty"`
}

// Probe inspects the first video stream of a file.
func (f *FFmpegWrapper) Probe(ctx context.Context, path string) (*Info, error) {
	if f.ffprobePath == "" {
		return nil, fmt.Errorf("ffprobe is not available")
	}

	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames,duration",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}

	output, err := f.BuildProbeCommand(ctx, args).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: ffprobe: %s", ErrUnreadableStream, firstLine(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe struct {
		Streams []struct {
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			RFrameRate string `json:"r_frame_rate"`
			NbFrames   string `json:"nb_frames"`
			Duration   string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("%w: parsing ffprobe output: %v", ErrUnreadableStream, err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: no video stream found", ErrUnreadableStream)
	}

	stream := probe.Streams[0]
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("%w: stream reports %dx%d", ErrUnreadableStream, stream.Width, stream.Height)
	}

	info := &Info{
		Width:  stream.Width,
		Height: stream.Height,
		FPS:    parseFrameRate(stream.RFrameRate),
	}

	info.Duration = parseProbeFloat(stream.Duration)
	if info.Duration == 0 {
		info.Duration = parseProbeFloat(probe.Format.Duration)
	}

	// Some containers omit nb_frames; estimate from duration
	if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
		info.TotalFrames = n
	} else if info.FPS > 0 && info.Duration > 0 {
		info.TotalFrames = int(math.Round(info.Duration * info.FPS))
	}

	return info, nil
}

// parseFrameRate parses ffprobe's fractional rates like "30000/1001".
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) == 2 {
		num := parseProbeFloat(parts[0])
		den := parseProbeFloat(parts[1])
		if den > 0 {
			return num / den
		}
		return 0
	}
	return parseProbeFloat(rate)
}

func parseProbeFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
