package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vzahanych/binsight/internal/logger"
)

// Service owns the loaded configuration: file values, environment
// overrides applied on top, validation on every load.
type Service struct {
	mu       sync.RWMutex
	cfg      *Config
	path     string
	log      *logger.Logger
	watchers []ConfigWatcher
}

// ConfigWatcher is notified after a successful reload.
type ConfigWatcher func(ctx context.Context, old, updated *Config) error

// NewService runs the load pipeline once and keeps the path for later
// reloads.
func NewService(path string, log *logger.Logger) (*Service, error) {
	cfg, err := loadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, path: path, log: log}, nil
}

// loadWithEnv is the single load pipeline: file, then environment,
// then validation.
func loadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Get returns the current configuration snapshot.
func (s *Service) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reload re-runs the load pipeline, swaps the snapshot in and notifies
// watchers with both versions. A load or validation failure leaves the
// previous snapshot in place. Watcher errors are logged, not
// propagated; the new configuration is already live by then.
func (s *Service) Reload(ctx context.Context) error {
	updated, err := loadWithEnv(s.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	s.mu.Lock()
	old := s.cfg
	s.cfg = updated
	watchers := append([]ConfigWatcher(nil), s.watchers...)
	s.mu.Unlock()

	// Callbacks run outside the lock so a watcher may call Get.
	for _, w := range watchers {
		if err := w(ctx, old, updated); err != nil {
			s.log.Error("Config watcher error", "error", err)
		}
	}

	s.log.Info("Configuration reloaded", "path", s.path)
	return nil
}

// Watch registers a watcher for future reloads.
func (s *Service) Watch(w ConfigWatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, w)
}

// applyEnvOverrides lets the environment win over file values.
// Unparseable values are ignored rather than failing startup; Validate
// still judges the final result.
func applyEnvOverrides(cfg *Config) {
	envString("BINSIGHT_SERVER_HOST", &cfg.Server.Host)
	envInt("BINSIGHT_SERVER_PORT", &cfg.Server.Port)
	envInt64("BINSIGHT_SERVER_MAX_UPLOAD_MB", &cfg.Server.MaxUploadMB)

	envString("BINSIGHT_MODEL_BACKEND", &cfg.Model.Backend)
	envString("BINSIGHT_MODEL_REMOTE_URL", &cfg.Model.RemoteURL)
	envString("BINSIGHT_MODEL_WEIGHTS_PATH", &cfg.Model.WeightsPath)
	envString("BINSIGHT_MODEL_WEIGHTS_URL", &cfg.Model.WeightsURL)
	envString("BINSIGHT_MODEL_LIBRARY_PATH", &cfg.Model.LibraryPath)
	envFloat("BINSIGHT_MODEL_CONFIDENCE", &cfg.Model.Confidence)
	envInt("BINSIGHT_MODEL_POOL_SIZE", &cfg.Model.PoolSize)
	envList("BINSIGHT_MODEL_CLASS_NAMES", &cfg.Model.ClassNames)
	envBool("BINSIGHT_MODEL_PRELOAD", &cfg.Model.Preload)

	envString("BINSIGHT_STORAGE_DATA_DIR", &cfg.Storage.DataDir)
	envString("BINSIGHT_STORAGE_UPLOADS_DIR", &cfg.Storage.UploadsDir)
	envString("BINSIGHT_STORAGE_RESULTS_DIR", &cfg.Storage.ResultsDir)
	envDuration("BINSIGHT_STORAGE_RETENTION_MAX_AGE", &cfg.Storage.Retention.MaxAge)

	envString("BINSIGHT_VIDEO_FFMPEG_PATH", &cfg.Video.FFmpegPath)
	envBool("BINSIGHT_VIDEO_CAPTURE_ENABLED", &cfg.Video.CaptureEnabled)
	envString("BINSIGHT_VIDEO_CAPTURE_SOURCE", &cfg.Video.CaptureSource)

	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FORMAT", &cfg.Log.Format)
	envString("LOG_OUTPUT", &cfg.Log.Output)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envList(key string, dst *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}
