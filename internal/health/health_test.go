package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/detect"
	"github.com/vzahanych/binsight/internal/logger"
	"github.com/vzahanych/binsight/internal/storage"
	"github.com/vzahanych/binsight/internal/video"
)

type stubChecker struct {
	name   string
	result Check
}

func (s *stubChecker) Name() string { return s.name }

func (s *stubChecker) Check(_ context.Context) Check { return s.result }

func TestManagerAllHealthy(t *testing.T) {
	m := NewManager(logger.NewNopLogger())
	m.Register(&stubChecker{name: "a", result: Check{Status: StatusHealthy}})
	m.Register(&stubChecker{name: "b", result: Check{Status: StatusHealthy}})

	report := m.Check(context.Background())
	if report.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	if report.Checks["a"].Name != "a" {
		t.Error("checker name not stamped onto result")
	}
	if report.Checks["a"].Timestamp.IsZero() {
		t.Error("check timestamp not stamped")
	}
	if report.Timestamp.IsZero() {
		t.Error("report timestamp not set")
	}
}

func TestManagerDegradedWins(t *testing.T) {
	m := NewManager(logger.NewNopLogger())
	m.Register(&stubChecker{name: "ok", result: Check{Status: StatusHealthy}})
	m.Register(&stubChecker{name: "bad", result: Check{Status: StatusDegraded, Message: "probe failed"}})

	report := m.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	if report.Checks["bad"].Message != "probe failed" {
		t.Error("checker message lost in aggregation")
	}
}

func TestManagerNoCheckers(t *testing.T) {
	m := NewManager(logger.NewNopLogger())

	report := m.Check(context.Background())
	if report.Status != StatusHealthy {
		t.Errorf("expected healthy with no checkers, got %s", report.Status)
	}
	if len(report.Checks) != 0 {
		t.Errorf("expected no checks, got %d", len(report.Checks))
	}
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	base := t.TempDir()
	store, err := storage.NewStore(config.StorageConfig{
		DataDir:    base,
		UploadsDir: filepath.Join(base, "uploads"),
		ResultsDir: filepath.Join(base, "results"),
	}, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestStorageChecker(t *testing.T) {
	checker := NewStorageChecker(newTestStore(t))

	check := checker.Check(context.Background())
	if check.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s (%s)", check.Status, check.Message)
	}
	if _, ok := check.Details["disk_usage_percent"]; !ok {
		t.Error("expected disk usage detail")
	}
}

func TestStorageCheckerUnwritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not bind for root")
	}

	store := newTestStore(t)
	if err := os.Chmod(store.UploadsDir(), 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(store.UploadsDir(), 0o755)

	check := NewStorageChecker(store).Check(context.Background())
	if check.Status != StatusDegraded {
		t.Errorf("expected degraded for read-only directory, got %s", check.Status)
	}
}

func TestModelCheckerWeightsMissing(t *testing.T) {
	gateway := detect.NewGateway(config.ModelConfig{
		WeightsPath: filepath.Join(t.TempDir(), "absent.onnx"),
	}, logger.NewNopLogger())

	check := NewModelChecker(gateway).Check(context.Background())
	if check.Status != StatusDegraded {
		t.Errorf("expected degraded without weights or URL, got %s", check.Status)
	}
	if loaded := check.Details["loaded"]; loaded != false {
		t.Errorf("expected loaded=false, got %v", loaded)
	}
}

func TestModelCheckerWeightsPresent(t *testing.T) {
	weights := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(weights, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}

	gateway := detect.NewGateway(config.ModelConfig{WeightsPath: weights}, logger.NewNopLogger())

	check := NewModelChecker(gateway).Check(context.Background())
	if check.Status != StatusHealthy {
		t.Errorf("expected healthy with weights on disk, got %s (%s)", check.Status, check.Message)
	}
	if gateway.Loaded() {
		t.Error("health check must not load the model")
	}
}

func TestModelCheckerDownloadPending(t *testing.T) {
	gateway := detect.NewGateway(config.ModelConfig{
		WeightsPath: filepath.Join(t.TempDir(), "absent.onnx"),
		WeightsURL:  "http://example.com/model.onnx",
	}, logger.NewNopLogger())

	check := NewModelChecker(gateway).Check(context.Background())
	if check.Status != StatusHealthy {
		t.Errorf("expected healthy when download is configured, got %s", check.Status)
	}
}

func TestModelCheckerRemoteBackend(t *testing.T) {
	gateway := detect.NewGateway(config.ModelConfig{
		Backend:   "remote",
		RemoteURL: "http://localhost:9001",
	}, logger.NewNopLogger())

	check := NewModelChecker(gateway).Check(context.Background())
	if check.Status != StatusHealthy {
		t.Errorf("expected healthy for cold remote backend, got %s", check.Status)
	}
	if check.Details["backend"] != "remote" {
		t.Errorf("expected backend detail, got %v", check.Details["backend"])
	}
}

func TestFFmpegCheckerNilWrapper(t *testing.T) {
	check := NewFFmpegChecker(nil).Check(context.Background())
	if check.Status != StatusDegraded {
		t.Errorf("expected degraded without ffmpeg, got %s", check.Status)
	}
}

func TestFFmpegCheckerWithWrapper(t *testing.T) {
	wrapper, err := video.NewFFmpegWrapper(config.VideoConfig{}, logger.NewNopLogger())
	if err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}

	check := NewFFmpegChecker(wrapper).Check(context.Background())
	if check.Details["ffmpeg"] == "" {
		t.Error("expected resolved ffmpeg path in details")
	}
	if check.Status != StatusHealthy && check.Status != StatusDegraded {
		t.Errorf("unexpected status %s", check.Status)
	}
}
