package video

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
)

func setupTestFFmpeg(t *testing.T) *FFmpegWrapper {
	t.Helper()
	ffmpeg, err := NewFFmpegWrapper(config.VideoConfig{}, logger.NewNopLogger())
	if err != nil {
		t.Skipf("FFmpeg not available, skipping test: %v", err)
	}
	return ffmpeg
}

// generateTestVideo renders a short synthetic clip with the lavfi test
// pattern and returns its path.
func generateTestVideo(t *testing.T, ffmpeg *FFmpegWrapper, frames int, size string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.mp4")
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "lavfi",
		"-i", "testsrc=size=" + size + ":rate=10",
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-y",
		path,
	}

	cmd := ffmpeg.BuildCommand(context.Background(), args)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("Cannot generate test video (missing lavfi or libx264?): %v (%s)", err, output)
	}

	return path
}
