package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/detect"
	"github.com/vzahanych/binsight/internal/health"
	"github.com/vzahanych/binsight/internal/logger"
	"github.com/vzahanych/binsight/internal/metrics"
	"github.com/vzahanych/binsight/internal/service"
	"github.com/vzahanych/binsight/internal/storage"
	"github.com/vzahanych/binsight/internal/video"
)

//go:embed static/*
var staticFiles embed.FS

var staticContentFS fs.FS

func init() {
	var err error
	staticContentFS, err = fs.Sub(staticFiles, "static")
	if err != nil {
		staticContentFS = staticFiles
	}
}

// Predictor is the inference surface the handlers need.
type Predictor interface {
	InferImage(ctx context.Context, path string, threshold float64) ([]detect.Detection, image.Image, error)
	InferFrame(ctx context.Context, img image.Image, threshold float64) ([]detect.Detection, image.Image, error)
	Loaded() bool
	Config() config.ModelConfig
}

// Server is the HTTP API service: prediction endpoints, artifact cleanup,
// model metadata, health and metrics, plus the embedded dashboard.
type Server struct {
	*service.ServiceBase
	cfg        *config.Config
	logger     *logger.Logger
	httpServer *http.Server
	router     *gin.Engine
	gateway    Predictor
	store      *storage.Store
	ffmpeg     *video.FFmpegWrapper // nil disables the video endpoints
	health     *health.Manager
	metrics    *metrics.Metrics
	version    string
	startTime  time.Time
}

// NewServer creates the web server service. ffmpeg may be nil; the video
// and capture endpoints then answer 503.
func NewServer(cfg *config.Config, gateway Predictor, store *storage.Store, ffmpeg *video.FFmpegWrapper, healthMgr *health.Manager, m *metrics.Metrics, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	return &Server{
		ServiceBase: service.NewServiceBase("web-server", log),
		cfg:         cfg,
		logger:      log,
		router:      router,
		gateway:     gateway,
		store:       store,
		ffmpeg:      ffmpeg,
		health:      healthMgr,
		metrics:     m,
		version:     "dev",
		startTime:   time.Now(),
	}
}

// SetVersion sets the application version reported by the API.
func (s *Server) SetVersion(version string) {
	s.version = version
}

// Start starts the web server.
func (s *Server) Start(ctx context.Context) error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Video responses can take minutes to produce; write timeouts are
		// left to the client.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		s.LogInfo("Starting web server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.LogError("Web server error", err, "address", addr)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.LogInfo("Web server started", "address", addr)
		return nil
	}
}

// Stop stops the web server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.LogInfo("Stopping web server")
	return s.httpServer.Shutdown(ctx)
}

// Name returns the service name.
func (s *Server) Name() string {
	return "web-server"
}

// setupRoutes sets up all API routes.
func (s *Server) setupRoutes() {
	s.router.Use(s.maxUploadMiddleware())

	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/predict", s.handlePredictImage)
	s.router.POST("/predict-batch", s.handlePredictBatch)
	s.router.DELETE("/cleanup/:id", s.handleCleanup)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/info", s.handleInfo)

		api.POST("/predict/image", s.handlePredictImage)
		api.POST("/predict/video", s.handlePredictVideo)
		api.POST("/camera/capture", s.handleCameraCapture)

		api.DELETE("/cleanup/:id", s.handleCleanup)

		api.GET("/model/download", s.handleModelDownload)
		api.GET("/model/info", s.handleModelInfo)
	}

	// Artifacts are addressable by the paths embedded in prediction
	// responses.
	s.router.Static("/uploads", s.store.UploadsDir())
	s.router.Static("/results", s.store.ResultsDir())
	s.router.StaticFS("/static", http.FS(staticContentFS))
}

// maxUploadMiddleware caps request bodies at server.max_upload_mb.
func (s *Server) maxUploadMiddleware() gin.HandlerFunc {
	limit := s.cfg.Server.MaxUploadMB << 20
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// handleRoot serves the dashboard to browsers and a liveness document to
// API clients.
func (s *Server) handleRoot(c *gin.Context) {
	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		if page, err := fs.ReadFile(staticContentFS, "index.html"); err == nil {
			c.Data(http.StatusOK, "text/html; charset=utf-8", page)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "binsight detection API",
		"version": s.version,
		"status":  "running",
	})
}

// ginLogger logs each request through the structured logger. Routine
// traffic stays at debug; 4xx and 5xx are promoted so problems show up
// in production logs without debug enabled.
func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}

		c.Next()

		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP request", kv...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP request", kv...)
		default:
			log.Debug("HTTP request", kv...)
		}
	}
}

// corsMiddleware opens the API to browser clients on other origins;
// during development the dashboard is often served from a different
// host than the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Cache-Control, X-Requested-With")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
