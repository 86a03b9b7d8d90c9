package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vzahanych/binsight/internal/detect"
	"github.com/vzahanych/binsight/internal/video"
)

// errUnsupportedMedia classifies uploads whose declared content type does
// not match the endpoint.
var errUnsupportedMedia = errors.New("unsupported media type")

// respondError converts an error into the structured failure body. Request
// errors map to 400, infrastructure errors to 500; nothing is retried.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, errUnsupportedMedia), errors.Is(err, video.ErrUnreadableStream):
		status = http.StatusBadRequest
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, detect.ErrWeightsUnavailable), errors.Is(err, detect.ErrModelLoad):
		s.LogError("Model failure", err)
	default:
		s.LogError("Request failed", err)
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// respondBadRequest reports a request validation failure.
func (s *Server) respondBadRequest(c *gin.Context, format string, args ...interface{}) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	})
}

// handleHealth reports the aggregate component health.
func (s *Server) handleHealth(c *gin.Context) {
	report := s.health.Check(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"status":       report.Status,
		"model_loaded": s.gateway.Loaded(),
		"timestamp":    report.Timestamp.Format(time.RFC3339),
		"uptime":       report.Uptime,
		"checks":       report.Checks,
	})
}

// handleInfo reports model metadata and storage statistics.
func (s *Server) handleInfo(c *gin.Context) {
	modelCfg := s.gateway.Config()

	info := gin.H{
		"version": s.version,
		"model": gin.H{
			"name":               filepath.Base(modelCfg.WeightsPath),
			"backend":            modelCfg.Backend,
			"input_size":         modelCfg.InputSize,
			"classes":            modelCfg.ClassNames,
			"confidence_default": modelCfg.Confidence,
			"loaded":             s.gateway.Loaded(),
		},
	}

	if stats, err := s.store.Stats(); err == nil {
		info["storage"] = stats
	}

	c.JSON(http.StatusOK, info)
}

// handleCleanup deletes every artifact belonging to a prediction id.
func (s *Server) handleCleanup(c *gin.Context) {
	id := c.Param("id")

	deleted, err := s.store.Cleanup(id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"prediction_id": id,
		"deleted_files": deleted,
	})
}

// handleModelDownload serves the raw weights file as an attachment.
func (s *Server) handleModelDownload(c *gin.Context) {
	path := s.gateway.Config().WeightsPath

	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "weights file not present",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(path)))
	c.Header("Content-Type", "application/octet-stream")
	c.File(path)
}

// handleModelInfo reports weights file metadata.
func (s *Server) handleModelInfo(c *gin.Context) {
	info, err := detect.DescribeWeights(s.gateway.Config().WeightsPath)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}
