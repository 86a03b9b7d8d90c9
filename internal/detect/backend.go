package detect

import (
	"context"
	"fmt"
	"image"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
)

// Backend runs raw detection on a single frame. Annotation is not part of
// the backend contract; it always happens in-process.
type Backend interface {
	Detect(ctx context.Context, img image.Image, threshold float64) ([]Detection, error)
	Close() error
}

// LocalBackend runs inference in-process through an ONNX session pool.
type LocalBackend struct {
	cfg  config.ModelConfig
	log  *logger.Logger
	pool *SessionPool
}

// NewLocalBackend initializes the ONNX runtime and builds the session pool.
func NewLocalBackend(cfg config.ModelConfig, log *logger.Logger) (*LocalBackend, error) {
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	pool, err := newSessionPool(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	log.Info("Model loaded",
		"weights", cfg.WeightsPath,
		"input_size", cfg.InputSize,
		"pool_size", cfg.PoolSize,
		"classes", len(cfg.ClassNames),
	)

	return &LocalBackend{
		cfg:  cfg,
		log:  log,
		pool: pool,
	}, nil
}

// Detect runs one inference on img and returns detections in original
// image coordinates.
func (b *LocalBackend) Detect(ctx context.Context, img image.Image, threshold float64) ([]Detection, error) {
	session, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer b.pool.Release(session)

	input := prepareInput(img, b.cfg.InputSize)
	output, err := session.run(input)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	detections := decodeOutput(
		output,
		len(b.cfg.ClassNames),
		b.cfg.InputSize,
		float64(bounds.Dx()),
		float64(bounds.Dy()),
		threshold,
		b.cfg.IoUThreshold,
		b.cfg.ClassNames,
	)
	return detections, nil
}

// Close tears down the session pool.
func (b *LocalBackend) Close() error {
	b.pool.Destroy()
	return nil
}
