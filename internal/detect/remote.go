package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
)

// RemoteBackend posts frames to a detector sidecar over HTTP instead of
// running inference in-process.
type RemoteBackend struct {
	serviceURL string
	httpClient *http.Client
	log        *logger.Logger
}

type inferenceRequest struct {
	Image               string   `json:"image"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

type remoteBoundingBox struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
}

type inferenceResponse struct {
	BoundingBoxes   []remoteBoundingBox `json:"bounding_boxes"`
	InferenceTimeMs float64             `json:"inference_time_ms"`
	DetectionCount  int                 `json:"detection_count"`
}

// NewRemoteBackend verifies the sidecar is reachable and returns a client
// for it.
func NewRemoteBackend(cfg config.ModelConfig, log *logger.Logger) (*RemoteBackend, error) {
	backend := &RemoteBackend{
		serviceURL: cfg.RemoteURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := backend.healthCheck(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	log.Info("Remote detection backend ready", "url", cfg.RemoteURL)
	return backend, nil
}

// Detect encodes the frame as JPEG and posts it to the sidecar.
func (b *RemoteBackend) Detect(ctx context.Context, img image.Image, threshold float64) ([]Detection, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req := inferenceRequest{
		Image: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
	if threshold > 0 {
		req.ConfidenceThreshold = &threshold
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/inference", b.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	b.log.Debug("Sending inference request", "url", url)
	startTime := time.Now()
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		b.log.Warn("Detection service returned error",
			"status", resp.StatusCode,
			"response", string(body),
		)
		return nil, fmt.Errorf("detection service returned status %d: %s", resp.StatusCode, string(body))
	}

	var inferenceResp inferenceResponse
	if err := json.Unmarshal(body, &inferenceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	detections := make([]Detection, 0, len(inferenceResp.BoundingBoxes))
	for _, box := range inferenceResp.BoundingBoxes {
		detections = append(detections, Detection{
			X1:         box.X1,
			Y1:         box.Y1,
			X2:         box.X2,
			Y2:         box.Y2,
			Confidence: box.Confidence,
			ClassID:    box.ClassID,
			ClassName:  box.ClassName,
		})
	}

	b.log.Debug("Inference completed",
		"detection_count", len(detections),
		"inference_time_ms", inferenceResp.InferenceTimeMs,
		"request_duration_ms", time.Since(startTime).Milliseconds(),
	)

	return detections, nil
}

// Close is a no-op; the sidecar owns its own lifecycle.
func (b *RemoteBackend) Close() error {
	return nil
}

// healthCheck probes the sidecar's readiness endpoint.
func (b *RemoteBackend) healthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health/ready", b.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detection service health check failed: status %d", resp.StatusCode)
	}

	return nil
}
