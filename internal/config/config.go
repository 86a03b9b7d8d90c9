package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Storage StorageConfig `yaml:"storage"`
	Video   VideoConfig   `yaml:"video"`
	Log     LogConfig     `yaml:"log,omitempty"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// ModelConfig contains detection model configuration
type ModelConfig struct {
	WeightsPath     string        `yaml:"weights_path"`
	WeightsURL      string        `yaml:"weights_url"`
	LibraryPath     string        `yaml:"library_path"` // ONNX runtime shared library; auto-detected per OS when empty
	InputSize       int           `yaml:"input_size"`
	Confidence      float64       `yaml:"confidence"`
	IoUThreshold    float64       `yaml:"iou_threshold"`
	PoolSize        int           `yaml:"pool_size"`
	ClassNames      []string      `yaml:"class_names"`
	Preload         bool          `yaml:"preload"`
	Backend         string        `yaml:"backend"` // "local" or "remote"
	RemoteURL       string        `yaml:"remote_url"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// StorageConfig contains artifact storage configuration
type StorageConfig struct {
	DataDir    string          `yaml:"data_dir"`
	UploadsDir string          `yaml:"uploads_dir"`
	ResultsDir string          `yaml:"results_dir"`
	Retention  RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains artifact retention configuration
type RetentionConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// VideoConfig contains video processing configuration
type VideoConfig struct {
	FFmpegPath     string `yaml:"ffmpeg_path"`
	FFprobePath    string `yaml:"ffprobe_path"`
	MaxEmbedBytes  int64  `yaml:"max_embed_bytes"`
	CaptureEnabled bool   `yaml:"capture_enabled"`
	CaptureSource  string `yaml:"capture_source"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// configSearchPaths are tried in order when no explicit path is given.
// The dev file shadows the production file so a checkout runs with dev
// settings without flags.
var configSearchPaths = []string{
	"./config/config.dev.yaml",
	"./config/config.yaml",
	"../config/config.dev.yaml",
	"../config/config.yaml",
	"/etc/binsight/config.yaml",
}

// Load reads the configuration file at path, searching the default
// locations when path is empty, and fills unset fields with defaults.
// Validation is left to the caller; the Service runs it after env
// overrides land.
func Load(path string) (*Config, error) {
	if path == "" {
		path = findConfigFile()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func findConfigFile() string {
	for _, p := range configSearchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// Nothing exists; let Load fail with the first candidate's name.
	return configSearchPaths[0]
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 200
	}

	if c.Model.WeightsPath == "" {
		c.Model.WeightsPath = "./weights/best.onnx"
	}
	if c.Model.WeightsURL == "" {
		c.Model.WeightsURL = "https://github.com/Gueyetech/train_detection_poubelle_plein_vide/raw/main/runs/detect/poubelle_pleine_vide7/weights/best.onnx"
	}
	if c.Model.InputSize == 0 {
		c.Model.InputSize = 640
	}
	if c.Model.Confidence == 0 {
		c.Model.Confidence = 0.25
	}
	if c.Model.IoUThreshold == 0 {
		c.Model.IoUThreshold = 0.7
	}
	if c.Model.PoolSize == 0 {
		c.Model.PoolSize = 2
	}
	if len(c.Model.ClassNames) == 0 {
		c.Model.ClassNames = []string{"poubelle_pleine", "poubelle_vide"}
	}
	if c.Model.Backend == "" {
		c.Model.Backend = "local"
	}
	if c.Model.DownloadTimeout == 0 {
		c.Model.DownloadTimeout = 5 * time.Minute
	}

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	if c.Storage.UploadsDir == "" {
		c.Storage.UploadsDir = filepath.Join(c.Storage.DataDir, "uploads")
	}
	if c.Storage.ResultsDir == "" {
		c.Storage.ResultsDir = filepath.Join(c.Storage.DataDir, "results")
	}
	if c.Storage.Retention.MaxAge == 0 {
		c.Storage.Retention.MaxAge = 24 * time.Hour
	}
	if c.Storage.Retention.SweepInterval == 0 {
		c.Storage.Retention.SweepInterval = time.Hour
	}

	if c.Video.MaxEmbedBytes == 0 {
		c.Video.MaxEmbedBytes = 32 << 20
	}
	if c.Video.CaptureSource == "" {
		c.Video.CaptureSource = "/dev/video0"
	}
}
