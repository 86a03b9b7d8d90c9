package integration

import (
	"bytes"
	"context"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
	"github.com/vzahanych/binsight/internal/storage"
)

// TestEnvironment provides a test environment for integration tests
type TestEnvironment struct {
	TempDir string
	Config  *config.Config
	Store   *storage.Store
	Logger  *logger.Logger
}

// SetupTestEnvironment creates a temp-dir backed environment with a real
// artifact store.
func SetupTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "data")

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, MaxUploadMB: 50},
		Model: config.ModelConfig{
			WeightsPath:  filepath.Join(tmpDir, "weights", "best.onnx"),
			InputSize:    640,
			Confidence:   0.25,
			IoUThreshold: 0.7,
			PoolSize:     2,
			ClassNames:   []string{"poubelle_pleine", "poubelle_vide"},
			Backend:      "local",
		},
		Storage: config.StorageConfig{
			DataDir:    dataDir,
			UploadsDir: filepath.Join(dataDir, "uploads"),
			ResultsDir: filepath.Join(dataDir, "results"),
			Retention: config.RetentionConfig{
				Enabled:       true,
				MaxAge:        24 * time.Hour,
				SweepInterval: time.Hour,
			},
		},
		Video: config.VideoConfig{MaxEmbedBytes: 32 << 20},
		Log:   config.LogConfig{Level: "debug", Format: "text"},
	}

	log := logger.NewNopLogger()

	store, err := storage.NewStore(cfg.Storage, log)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	return &TestEnvironment{
		TempDir: tmpDir,
		Config:  cfg,
		Store:   store,
		Logger:  log,
	}
}

// TestJPEG returns an encoded JPEG fixture.
func TestJPEG(t *testing.T) []byte {
	t.Helper()

	img := imaging.New(64, 48, color.NRGBA{180, 180, 180, 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

// WaitForCondition waits for a condition to become true
func WaitForCondition(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		<-ticker.C
	}

	return false
}

// ContextWithTimeout creates a context with timeout for tests
func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
