package health

import (
	"context"
	"fmt"
	"os"

	"github.com/vzahanych/binsight/internal/detect"
	"github.com/vzahanych/binsight/internal/storage"
	"github.com/vzahanych/binsight/internal/video"
)

// ModelChecker reports weights availability and whether the model has been
// loaded. It never triggers a load; a cold model is healthy, just not warm.
type ModelChecker struct {
	gateway *detect.Gateway
}

func NewModelChecker(gateway *detect.Gateway) *ModelChecker {
	return &ModelChecker{gateway: gateway}
}

func (c *ModelChecker) Name() string {
	return "model"
}

func (c *ModelChecker) Check(ctx context.Context) Check {
	cfg := c.gateway.Config()
	loaded := c.gateway.Loaded()

	check := Check{
		Status: StatusHealthy,
		Details: map[string]interface{}{
			"loaded":  loaded,
			"backend": cfg.Backend,
		},
	}

	if loaded {
		check.Message = "model loaded"
		return check
	}

	if cfg.Backend == "remote" {
		check.Message = "remote model loads on first request"
		check.Details["remote_url"] = cfg.RemoteURL
		return check
	}

	if info, err := os.Stat(cfg.WeightsPath); err == nil {
		check.Message = "weights present, model loads on first request"
		check.Details["weights_bytes"] = info.Size()
	} else if cfg.WeightsURL != "" {
		check.Message = "weights download pending"
		check.Details["weights_url"] = cfg.WeightsURL
	} else {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("weights unavailable: %v", err)
	}

	return check
}

// StorageChecker verifies the artifact directories still accept writes.
type StorageChecker struct {
	store *storage.Store
}

func NewStorageChecker(store *storage.Store) *StorageChecker {
	return &StorageChecker{store: store}
}

func (c *StorageChecker) Name() string {
	return "storage"
}

func (c *StorageChecker) Check(ctx context.Context) Check {
	check := Check{
		Status:  StatusHealthy,
		Details: make(map[string]interface{}),
	}

	for _, dir := range []string{c.store.UploadsDir(), c.store.ResultsDir()} {
		probe, err := os.CreateTemp(dir, ".healthz-*")
		if err != nil {
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("directory not writable: %v", err)
			check.Details["dir"] = dir
			return check
		}
		probe.Close()
		os.Remove(probe.Name())
	}

	check.Message = "artifact directories writable"
	if stats, err := c.store.Stats(); err == nil {
		check.Details["upload_count"] = stats.UploadCount
		check.Details["result_count"] = stats.ResultCount
		check.Details["disk_usage_percent"] = stats.DiskUsagePercent
		check.Details["available_bytes"] = stats.AvailableBytes
	}

	return check
}

// FFmpegChecker reports whether the ffmpeg toolchain was found at startup.
// A nil wrapper means video endpoints are disabled for this process.
type FFmpegChecker struct {
	ffmpeg *video.FFmpegWrapper
}

func NewFFmpegChecker(ffmpeg *video.FFmpegWrapper) *FFmpegChecker {
	return &FFmpegChecker{ffmpeg: ffmpeg}
}

func (c *FFmpegChecker) Name() string {
	return "ffmpeg"
}

func (c *FFmpegChecker) Check(ctx context.Context) Check {
	check := Check{Details: make(map[string]interface{})}

	if c.ffmpeg == nil {
		check.Status = StatusDegraded
		check.Message = "ffmpeg not found, video endpoints disabled"
		return check
	}

	check.Status = StatusHealthy
	check.Details["ffmpeg"] = c.ffmpeg.FFmpegPath()

	if probe := c.ffmpeg.FFprobePath(); probe != "" {
		check.Message = "ffmpeg and ffprobe available"
		check.Details["ffprobe"] = probe
	} else {
		check.Status = StatusDegraded
		check.Message = "ffprobe missing, video metadata probing disabled"
	}

	return check
}
