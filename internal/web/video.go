package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vzahanych/binsight/internal/metrics"
	"github.com/vzahanych/binsight/internal/service"
	"github.com/vzahanych/binsight/internal/storage"
	"github.com/vzahanych/binsight/internal/video"
)

// VideoResult is the response body for a video prediction.
type VideoResult struct {
	Success                   bool           `json:"success"`
	PredictionID              string         `json:"prediction_id"`
	FramesProcessed           int            `json:"frames_processed"`
	TotalDetections           int            `json:"total_detections"`
	AverageDetectionsPerFrame float64        `json:"average_detections_per_frame"`
	DetectionStats            map[string]int `json:"detection_stats"`
	VideoInfo                 *video.Info    `json:"video_info"`
	AnnotatedVideo            string         `json:"annotated_video,omitempty"`
	AnnotatedVideoURL         string         `json:"annotated_video_url,omitempty"`
}

// handlePredictVideo runs detection across every frame of an uploaded video
// and returns the annotated copy plus the aggregate counts.
func (s *Server) handlePredictVideo(c *gin.Context) {
	if s.ffmpeg == nil {
		s.metrics.RecordPrediction(metrics.KindVideo, metrics.OutcomeError)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "video processing unavailable: ffmpeg not found",
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		s.metrics.RecordPrediction(metrics.KindVideo, metrics.OutcomeError)
		s.respondUploadError(c, err)
		return
	}

	threshold, ok := s.formThreshold(c)
	if !ok {
		s.metrics.RecordPrediction(metrics.KindVideo, metrics.OutcomeError)
		return
	}

	result, err := s.predictVideo(c.Request.Context(), file, threshold)
	if err != nil {
		s.metrics.RecordPrediction(metrics.KindVideo, metrics.OutcomeError)
		s.respondError(c, err)
		return
	}

	s.metrics.RecordPrediction(metrics.KindVideo, metrics.OutcomeSuccess)
	s.PublishEvent(service.EventTypeVideoProcessed, map[string]interface{}{
		"prediction_id":    result.PredictionID,
		"frames_processed": result.FramesProcessed,
		"total_detections": result.TotalDetections,
	})
	c.JSON(http.StatusOK, result)
}

// predictVideo stages the upload into a scoped temp dir, probes it, runs
// the frame loop and applies the embed-or-persist policy. The temp dir and
// everything in it are removed on success and failure alike.
func (s *Server) predictVideo(ctx context.Context, file *multipart.FileHeader, threshold float64) (*VideoResult, error) {
	if !isVideoUpload(file) {
		return nil, fmt.Errorf("%w: %q is not a video", errUnsupportedMedia, declaredType(file))
	}

	tmpDir, err := os.MkdirTemp("", "predict-video-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating video workspace: %v", storage.ErrWrite, err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "input"+strings.ToLower(filepath.Ext(file.Filename)))
	if err := saveUpload(file, inputPath); err != nil {
		return nil, fmt.Errorf("%w: staging video: %v", storage.ErrWrite, err)
	}

	info, err := s.ffmpeg.Probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	id := storage.NewID()
	outputPath := filepath.Join(tmpDir, "annotated.mp4")

	result, err := s.runFrameLoop(ctx, id, inputPath, outputPath, info, threshold)
	if err != nil {
		return nil, err
	}

	if err := s.attachAnnotatedVideo(result, id, outputPath); err != nil {
		return nil, err
	}
	return result, nil
}

// runFrameLoop decodes frames strictly in order, infers each one and feeds
// the annotated frame to the encoder. The loop ends on decoder EOF; the
// probed frame count is advisory only and never consulted.
func (s *Server) runFrameLoop(ctx context.Context, id, inputPath, outputPath string, info *video.Info, threshold float64) (*VideoResult, error) {
	reader, err := s.ffmpeg.OpenFrameReader(ctx, inputPath, info.Width, info.Height)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	writer, err := s.ffmpeg.OpenFrameWriter(ctx, outputPath, info.Width, info.Height, info.FPS)
	if err != nil {
		return nil, err
	}
	encoding := true
	defer func() {
		if encoding {
			writer.Abort()
		}
	}()

	start := time.Now()
	frames := 0
	total := 0
	stats := make(map[string]int)

	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading frame %d: %w", frames, err)
		}

		inferStart := time.Now()
		detections, annotated, err := s.gateway.InferFrame(ctx, frame, threshold)
		if err != nil {
			return nil, err
		}
		s.metrics.ObserveInference(time.Since(inferStart))

		if err := writer.Write(annotated); err != nil {
			return nil, err
		}

		frames++
		total += len(detections)
		for _, d := range detections {
			stats[d.ClassName]++
		}
	}

	encoding = false
	if err := writer.Close(); err != nil {
		return nil, err
	}

	s.metrics.AddFramesProcessed(frames)
	s.metrics.RecordDetections(stats)
	s.LogInfo("Video processed",
		"prediction_id", id,
		"frames", frames,
		"detections", total,
		"duration", time.Since(start),
	)

	average := 0.0
	if frames > 0 {
		average = float64(total) / float64(frames)
	}

	return &VideoResult{
		Success:                   true,
		PredictionID:              id,
		FramesProcessed:           frames,
		TotalDetections:           total,
		AverageDetectionsPerFrame: average,
		DetectionStats:            stats,
		VideoInfo:                 info,
	}, nil
}

// attachAnnotatedVideo embeds the annotated file as a data URI when it fits
// under video.max_embed_bytes, otherwise persists it into the results dir
// and attaches a URL reference.
func (s *Server) attachAnnotatedVideo(result *VideoResult, id, outputPath string) error {
	stat, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("annotated video missing: %w", err)
	}

	if stat.Size() <= s.cfg.Video.MaxEmbedBytes {
		data, err := os.ReadFile(outputPath)
		if err != nil {
			return fmt.Errorf("reading annotated video: %w", err)
		}
		result.AnnotatedVideo = "data:video/mp4;base64," + base64.StdEncoding.EncodeToString(data)
		return nil
	}

	resultPath, err := s.store.PersistAnnotatedVideo(id, outputPath)
	if err != nil {
		return err
	}
	result.AnnotatedVideoURL = "/results/" + filepath.Base(resultPath)
	return nil
}

// handleCameraCapture grabs one frame from a configured capture source and
// runs the image pipeline on it. Gated by video.capture_enabled.
func (s *Server) handleCameraCapture(c *gin.Context) {
	if !s.cfg.Video.CaptureEnabled {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "camera capture is disabled",
		})
		return
	}
	if s.ffmpeg == nil {
		s.metrics.RecordPrediction(metrics.KindCapture, metrics.OutcomeError)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "camera capture unavailable: ffmpeg not found",
		})
		return
	}

	var req struct {
		Source     string  `json:"source"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.metrics.RecordPrediction(metrics.KindCapture, metrics.OutcomeError)
		s.respondBadRequest(c, "invalid request body: %v", err)
		return
	}

	source := req.Source
	if source == "" {
		source = s.cfg.Video.CaptureSource
	}
	if source == "" {
		s.metrics.RecordPrediction(metrics.KindCapture, metrics.OutcomeError)
		s.respondBadRequest(c, "no capture source configured")
		return
	}

	frame, err := s.ffmpeg.CaptureFrameJPEG(c.Request.Context(), source)
	if err != nil {
		s.metrics.RecordPrediction(metrics.KindCapture, metrics.OutcomeError)
		s.respondError(c, err)
		return
	}

	result, err := s.runPrediction(c.Request.Context(), "capture.jpg", bytes.NewReader(frame), req.Confidence)
	if err != nil {
		s.metrics.RecordPrediction(metrics.KindCapture, metrics.OutcomeError)
		s.respondError(c, err)
		return
	}

	s.metrics.RecordPrediction(metrics.KindCapture, metrics.OutcomeSuccess)
	c.JSON(http.StatusOK, result)
}

// saveUpload copies one multipart file to disk.
func saveUpload(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
