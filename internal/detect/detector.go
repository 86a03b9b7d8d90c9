package detect

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
)

// Gateway fronts the detection model. The backend is loaded lazily on
// first use and shared by every caller afterwards.
type Gateway struct {
	cfg config.ModelConfig
	log *logger.Logger

	mu             sync.Mutex
	backend        Backend
	weightsFetched bool

	// newBackend is replaceable in tests
	newBackend func(ctx context.Context) (Backend, error)
}

// NewGateway creates an unloaded gateway.
func NewGateway(cfg config.ModelConfig, log *logger.Logger) *Gateway {
	g := &Gateway{
		cfg: cfg,
		log: log,
	}
	g.newBackend = g.buildBackend
	return g
}

func (g *Gateway) buildBackend(ctx context.Context) (Backend, error) {
	switch g.cfg.Backend {
	case "remote":
		return NewRemoteBackend(g.cfg, g.log)
	default:
		downloaded, err := EnsureWeights(ctx, g.cfg, g.log)
		if err != nil {
			return nil, err
		}
		g.weightsFetched = downloaded
		return NewLocalBackend(g.cfg, g.log)
	}
}

// Get returns the shared backend, loading it on first call. The mutex
// guarantees exactly one loader runs; a failed load is not cached, so the
// next caller retries.
func (g *Gateway) Get(ctx context.Context) (Backend, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.backend != nil {
		return g.backend, nil
	}

	backend, err := g.newBackend(ctx)
	if err != nil {
		return nil, err
	}

	g.backend = backend
	return backend, nil
}

// Loaded reports whether the backend has been initialized. It never
// triggers a load.
func (g *Gateway) Loaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.backend != nil
}

// WeightsFetched reports whether loading the backend had to download the
// weights file rather than finding it on disk.
func (g *Gateway) WeightsFetched() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.weightsFetched
}

// InferImage decodes an image from disk, runs detection and renders the
// annotated copy. The annotated raster has the input's pixel dimensions.
func (g *Gateway) InferImage(ctx context.Context, path string, threshold float64) ([]Detection, image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return g.InferFrame(ctx, img, threshold)
}

// InferFrame runs detection on an in-memory frame and renders the
// annotated copy.
func (g *Gateway) InferFrame(ctx context.Context, img image.Image, threshold float64) ([]Detection, image.Image, error) {
	backend, err := g.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	detections, err := backend.Detect(ctx, img, g.effectiveThreshold(threshold))
	if err != nil {
		return nil, nil, err
	}

	annotated := Annotate(img, detections)
	return detections, annotated, nil
}

// effectiveThreshold substitutes the configured default when the caller
// passes a non-positive value.
func (g *Gateway) effectiveThreshold(threshold float64) float64 {
	if threshold <= 0 {
		return g.cfg.Confidence
	}
	return threshold
}

// Config returns the model configuration the gateway was built with.
func (g *Gateway) Config() config.ModelConfig {
	return g.cfg
}

// Close releases the backend if it was loaded.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.backend == nil {
		return nil
	}
	err := g.backend.Close()
	g.backend = nil
	return err
}
