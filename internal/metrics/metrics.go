// Package metrics exposes Prometheus counters for the prediction API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values for the predictions counter.
const (
	KindImage   = "image"
	KindBatch   = "batch"
	KindVideo   = "video"
	KindCapture = "capture"

	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the collectors for the serving layer. Everything is
// registered on a private registry so the exposition endpoint carries only
// our own series.
type Metrics struct {
	registry *prometheus.Registry

	predictions       *prometheus.CounterVec
	detections        *prometheus.CounterVec
	inferenceDuration prometheus.Histogram
	framesProcessed   prometheus.Counter
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Prediction requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detections_total",
			Help: "Objects detected, by class name.",
		}, []string{"class_name"}),
		inferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inference_duration_seconds",
			Help:    "Wall-clock duration of a single model inference.",
			Buckets: prometheus.DefBuckets,
		}),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frames_processed_total",
			Help: "Video frames run through the model.",
		}),
	}

	m.registry.MustRegister(
		m.predictions,
		m.detections,
		m.inferenceDuration,
		m.framesProcessed,
	)

	return m
}

// RecordPrediction counts one prediction request.
func (m *Metrics) RecordPrediction(kind, outcome string) {
	m.predictions.WithLabelValues(kind, outcome).Inc()
}

// RecordDetections counts detected objects per class.
func (m *Metrics) RecordDetections(classCounts map[string]int) {
	for class, n := range classCounts {
		m.detections.WithLabelValues(class).Add(float64(n))
	}
}

// ObserveInference records the duration of one model call.
func (m *Metrics) ObserveInference(d time.Duration) {
	m.inferenceDuration.Observe(d.Seconds())
}

// AddFramesProcessed counts video frames run through the model.
func (m *Metrics) AddFramesProcessed(n int) {
	m.framesProcessed.Add(float64(n))
}

// Handler returns the Prometheus HTTP handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
