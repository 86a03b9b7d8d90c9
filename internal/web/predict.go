package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vzahanych/binsight/internal/detect"
	"github.com/vzahanych/binsight/internal/metrics"
	"github.com/vzahanych/binsight/internal/service"
	"github.com/vzahanych/binsight/internal/storage"
)

// maxBatchFiles caps a single batch request.
const maxBatchFiles = 10

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".bmp": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true,
	".mkv": true, ".webm": true,
}

// ImageResult is the response body for a single image prediction.
type ImageResult struct {
	Success        bool               `json:"success"`
	PredictionID   string             `json:"prediction_id"`
	OriginalImage  string             `json:"original_image"`
	AnnotatedImage string             `json:"annotated_image"`
	Detections     []detect.Detection `json:"detections"`
	Summary        detect.Summary     `json:"summary"`
}

// BatchItem is one entry of a batch response, in input order.
type BatchItem struct {
	Filename       string             `json:"filename"`
	Success        bool               `json:"success"`
	Error          string             `json:"error,omitempty"`
	PredictionID   string             `json:"prediction_id,omitempty"`
	OriginalImage  string             `json:"original_image,omitempty"`
	AnnotatedImage string             `json:"annotated_image,omitempty"`
	Detections     []detect.Detection `json:"detections,omitempty"`
	Summary        *detect.Summary    `json:"summary,omitempty"`
}

// handlePredictImage runs detection on a single uploaded image.
func (s *Server) handlePredictImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		s.metrics.RecordPrediction(metrics.KindImage, metrics.OutcomeError)
		s.respondUploadError(c, err)
		return
	}

	threshold, ok := s.formThreshold(c)
	if !ok {
		s.metrics.RecordPrediction(metrics.KindImage, metrics.OutcomeError)
		return
	}

	result, err := s.predictUpload(c.Request.Context(), file, threshold)
	if err != nil {
		s.metrics.RecordPrediction(metrics.KindImage, metrics.OutcomeError)
		s.respondError(c, err)
		return
	}

	s.metrics.RecordPrediction(metrics.KindImage, metrics.OutcomeSuccess)
	c.JSON(http.StatusOK, result)
}

// handlePredictBatch runs detection on up to maxBatchFiles images. One bad
// item fails alone; the rest of the batch still completes, in input order.
func (s *Server) handlePredictBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		s.metrics.RecordPrediction(metrics.KindBatch, metrics.OutcomeError)
		s.respondUploadError(c, err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		s.metrics.RecordPrediction(metrics.KindBatch, metrics.OutcomeError)
		s.respondBadRequest(c, "no files provided")
		return
	}
	if len(files) > maxBatchFiles {
		s.metrics.RecordPrediction(metrics.KindBatch, metrics.OutcomeError)
		s.respondBadRequest(c, "too many files: %d (max %d)", len(files), maxBatchFiles)
		return
	}

	threshold, ok := s.formThreshold(c)
	if !ok {
		s.metrics.RecordPrediction(metrics.KindBatch, metrics.OutcomeError)
		return
	}

	items := make([]BatchItem, 0, len(files))
	for _, file := range files {
		result, err := s.predictUpload(c.Request.Context(), file, threshold)
		if err != nil {
			items = append(items, BatchItem{
				Filename: file.Filename,
				Success:  false,
				Error:    err.Error(),
			})
			continue
		}

		summary := result.Summary
		items = append(items, BatchItem{
			Filename:       file.Filename,
			Success:        true,
			PredictionID:   result.PredictionID,
			OriginalImage:  result.OriginalImage,
			AnnotatedImage: result.AnnotatedImage,
			Detections:     result.Detections,
			Summary:        &summary,
		})
	}

	s.metrics.RecordPrediction(metrics.KindBatch, metrics.OutcomeSuccess)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"total_files": len(items),
		"results":     items,
	})
}

// predictUpload validates the declared media type and runs the image
// pipeline on one multipart file.
func (s *Server) predictUpload(ctx context.Context, file *multipart.FileHeader, threshold float64) (*ImageResult, error) {
	if !isImageUpload(file) {
		return nil, fmt.Errorf("%w: %q is not an image", errUnsupportedMedia, declaredType(file))
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	return s.runPrediction(ctx, file.Filename, src, threshold)
}

// runPrediction is the core image flow: stage the upload, infer, persist
// the annotated copy, assemble the result. A failure after staging removes
// the staged upload so no orphan survives the request.
func (s *Server) runPrediction(ctx context.Context, filename string, r io.Reader, threshold float64) (*ImageResult, error) {
	id := storage.NewID()

	uploadPath, err := s.store.StageUpload(id, filename, r)
	if err != nil {
		s.publishPredictionFailed(id, filename, err)
		return nil, err
	}

	start := time.Now()
	detections, annotated, err := s.gateway.InferImage(ctx, uploadPath, threshold)
	if err != nil {
		s.store.Remove(uploadPath)
		s.publishPredictionFailed(id, filename, err)
		return nil, err
	}
	s.metrics.ObserveInference(time.Since(start))

	resultPath, err := s.store.PersistAnnotated(id, annotated)
	if err != nil {
		s.store.Remove(uploadPath)
		s.publishPredictionFailed(id, filename, err)
		return nil, err
	}

	summary := detect.Summarize(detections)
	s.metrics.RecordDetections(summary.ClassCounts)
	s.PublishEvent(service.EventTypePredictionCompleted, map[string]interface{}{
		"prediction_id": id,
		"detections":    len(detections),
	})

	return &ImageResult{
		Success:        true,
		PredictionID:   id,
		OriginalImage:  "/uploads/" + filepath.Base(uploadPath),
		AnnotatedImage: "/results/" + filepath.Base(resultPath),
		Detections:     detections,
		Summary:        summary,
	}, nil
}

func (s *Server) publishPredictionFailed(id, filename string, err error) {
	s.PublishEvent(service.EventTypePredictionFailed, map[string]interface{}{
		"prediction_id": id,
		"filename":      filename,
		"error":         err.Error(),
	})
}

// respondUploadError classifies a multipart extraction failure: an
// oversized body keeps its 413 mapping, everything else is the client's
// request shape.
func (s *Server) respondUploadError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		s.respondError(c, err)
		return
	}
	s.respondBadRequest(c, "no file provided: %v", err)
}

// formThreshold reads the optional confidence value from the form or query
// string. Zero means "use the configured default". A false return means the
// response has already been written.
func (s *Server) formThreshold(c *gin.Context) (float64, bool) {
	raw := c.PostForm("confidence")
	if raw == "" {
		raw = c.Query("confidence")
	}
	if raw == "" {
		return 0, true
	}

	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.respondBadRequest(c, "invalid confidence value %q", raw)
		return 0, false
	}
	if threshold > 1 {
		s.respondBadRequest(c, "confidence must not exceed 1")
		return 0, false
	}

	return threshold, true
}

func declaredType(file *multipart.FileHeader) string {
	return file.Header.Get("Content-Type")
}

// isImageUpload accepts a declared image content type, falling back to the
// file extension when the client sent a generic type.
func isImageUpload(file *multipart.FileHeader) bool {
	ct := declaredType(file)
	if strings.HasPrefix(ct, "image/") {
		return true
	}
	if ct == "" || ct == "application/octet-stream" {
		return imageExtensions[strings.ToLower(filepath.Ext(file.Filename))]
	}
	return false
}

// isVideoUpload is the video-endpoint counterpart of isImageUpload.
func isVideoUpload(file *multipart.FileHeader) bool {
	ct := declaredType(file)
	if strings.HasPrefix(ct, "video/") {
		return true
	}
	if ct == "" || ct == "application/octet-stream" {
		return videoExtensions[strings.ToLower(filepath.Ext(file.Filename))]
	}
	return false
}
