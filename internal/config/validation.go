package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validate validates the configuration with detailed error messages
func (c *Config) Validate() error {
	var errors []string

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error, fatal)", c.Log.Level))
	}

	// Validate log format
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	// Validate server settings
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port must be between 1 and 65535, got: %d", c.Server.Port))
	}

	if c.Server.MaxUploadMB <= 0 {
		errors = append(errors, fmt.Sprintf("server.max_upload_mb must be > 0, got: %d", c.Server.MaxUploadMB))
	}

	// Validate model settings
	if c.Model.WeightsPath == "" {
		errors = append(errors, "model.weights_path is required")
	}

	if c.Model.Confidence < 0 || c.Model.Confidence > 1 {
		errors = append(errors, fmt.Sprintf("model.confidence must be between 0 and 1, got: %.2f", c.Model.Confidence))
	}

	if c.Model.IoUThreshold <= 0 || c.Model.IoUThreshold > 1 {
		errors = append(errors, fmt.Sprintf("model.iou_threshold must be between 0 and 1, got: %.2f", c.Model.IoUThreshold))
	}

	if c.Model.InputSize <= 0 {
		errors = append(errors, fmt.Sprintf("model.input_size must be > 0, got: %d", c.Model.InputSize))
	}

	if c.Model.PoolSize <= 0 {
		errors = append(errors, fmt.Sprintf("model.pool_size must be > 0, got: %d", c.Model.PoolSize))
	}

	if c.Model.Backend != "local" && c.Model.Backend != "remote" {
		errors = append(errors, fmt.Sprintf("invalid model.backend: %s (must be: local or remote)", c.Model.Backend))
	}

	if c.Model.Backend == "remote" && c.Model.RemoteURL == "" {
		errors = append(errors, "model.remote_url is required when model.backend is remote")
	}

	if c.Model.DownloadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("model.download_timeout must be > 0, got: %v", c.Model.DownloadTimeout))
	}

	// Validate storage settings
	if c.Storage.DataDir == "" {
		errors = append(errors, "storage.data_dir is required")
	}

	if c.Storage.Retention.MaxAge < 0 {
		errors = append(errors, fmt.Sprintf("storage.retention.max_age must be >= 0, got: %v", c.Storage.Retention.MaxAge))
	}

	if c.Storage.Retention.SweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("storage.retention.sweep_interval must be > 0, got: %v", c.Storage.Retention.SweepInterval))
	}

	// Validate video settings
	if c.Video.MaxEmbedBytes < 0 {
		errors = append(errors, fmt.Sprintf("video.max_embed_bytes must be >= 0, got: %d", c.Video.MaxEmbedBytes))
	}

	if c.Video.CaptureEnabled && c.Video.CaptureSource == "" {
		errors = append(errors, "video.capture_source is required when video.capture_enabled is set")
	}

	// Validate storage directories
	if c.Storage.UploadsDir != "" {
		if !filepath.IsAbs(c.Storage.UploadsDir) && !strings.HasPrefix(c.Storage.UploadsDir, "./") {
			// Relative path - make it relative to data_dir
			c.Storage.UploadsDir = filepath.Join(c.Storage.DataDir, c.Storage.UploadsDir)
		}
	}

	if c.Storage.ResultsDir != "" {
		if !filepath.IsAbs(c.Storage.ResultsDir) && !strings.HasPrefix(c.Storage.ResultsDir, "./") {
			// Relative path - make it relative to data_dir
			c.Storage.ResultsDir = filepath.Join(c.Storage.DataDir, c.Storage.ResultsDir)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
