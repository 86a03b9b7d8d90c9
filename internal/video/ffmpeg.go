package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
)

// FFmpegWrapper wraps the ffmpeg and ffprobe binaries used for video
// decoding, encoding and camera capture.
type FFmpegWrapper struct {
	logger      *logger.Logger
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegWrapper locates the binaries and returns a wrapper. A missing
// ffprobe degrades probing but is not fatal; a missing ffmpeg is.
func NewFFmpegWrapper(cfg config.VideoConfig, log *logger.Logger) (*FFmpegWrapper, error) {
	wrapper := &FFmpegWrapper{
		logger: log,
	}

	ffmpegPath, err := detectBinary(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	wrapper.ffmpegPath = ffmpegPath

	ffprobePath, err := detectBinary(cfg.FFprobePath, "ffprobe")
	if err != nil {
		log.Warn("ffprobe not found, stream probing disabled", "error", err)
	}
	wrapper.ffprobePath = ffprobePath

	log.Info("FFmpeg wrapper initialized",
		"ffmpeg", wrapper.ffmpegPath,
		"ffprobe", wrapper.ffprobePath,
	)

	return wrapper, nil
}

// detectBinary resolves a binary, preferring the configured path.
func detectBinary(configured, name string) (string, error) {
	paths := []string{name, "/usr/bin/" + name, "/usr/local/bin/" + name}
	if configured != "" {
		paths = append([]string{configured}, paths...)
	}

	for _, path := range paths {
		if exec.Command(path, "-version").Run() == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", name)
}

// FFmpegPath returns the resolved ffmpeg binary path.
func (f *FFmpegWrapper) FFmpegPath() string {
	return f.ffmpegPath
}

// FFprobePath returns the resolved ffprobe binary path, empty when
// ffprobe was not found.
func (f *FFmpegWrapper) FFprobePath() string {
	return f.ffprobePath
}

// BuildCommand builds an ffmpeg command.
func (f *FFmpegWrapper) BuildCommand(ctx context.Context, args []string) *exec.Cmd {
	return exec.CommandContext(ctx, f.ffmpegPath, args...)
}

// BuildProbeCommand builds an ffprobe command.
func (f *FFmpegWrapper) BuildProbeCommand(ctx context.Context, args []string) *exec.Cmd {
	return exec.CommandContext(ctx, f.ffprobePath, args...)
}

// GetVersion reports the first line of ffmpeg -version output.
func (f *FFmpegWrapper) GetVersion() (string, error) {
	out, err := exec.Command(f.ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}
	return firstLine(string(out)), nil
}

// ValidateInput runs a quick decode probe against an input source
// (file, device or stream URL).
func (f *FFmpegWrapper) ValidateInput(ctx context.Context, input string) error {
	args := []string{
		"-hide_banner",
		"-probesize", "32",
		"-analyzeduration", "1000000",
	}
	args = append(args, inputArgs(input)...)
	args = append(args,
		"-frames:v", "1",
		"-f", "null",
		"-",
	)

	cmd := f.BuildCommand(ctx, args)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "Connection refused") ||
			strings.Contains(string(output), "No such file") ||
			strings.Contains(string(output), "Invalid data found") {
			return fmt.Errorf("%w: %s", ErrUnreadableStream, firstLine(string(output)))
		}
		return fmt.Errorf("input validation failed: %w", err)
	}

	return nil
}

// inputArgs returns the -i argument with any source-specific flags.
// Video4Linux devices and RTSP URLs need their demuxers picked
// explicitly.
func inputArgs(input string) []string {
	switch {
	case strings.HasPrefix(input, "/dev/video"):
		return []string{"-f", "v4l2", "-i", input}
	case strings.HasPrefix(input, "rtsp://"):
		return []string{"-rtsp_transport", "tcp", "-i", input}
	default:
		return []string{"-i", input}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
