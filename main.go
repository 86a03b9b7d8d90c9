package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/detect"
	"github.com/vzahanych/binsight/internal/health"
	"github.com/vzahanych/binsight/internal/logger"
	"github.com/vzahanych/binsight/internal/metrics"
	"github.com/vzahanych/binsight/internal/service"
	"github.com/vzahanych/binsight/internal/storage"
	"github.com/vzahanych/binsight/internal/video"
	"github.com/vzahanych/binsight/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.Parse()

	// The config service applies env overrides before the logger config is
	// read, so it loads against a no-op logger.
	cfgSvc, err := config.NewService(configPath, logger.NewNopLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgSvc.Get()

	log, err := logger.New(logger.LogConfig{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting binsight",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage, log)
	if err != nil {
		log.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	gateway := detect.NewGateway(cfg.Model, log)
	defer gateway.Close()

	// The server runs without ffmpeg; video and capture endpoints answer
	// 503 until it is installed.
	ffmpeg, err := video.NewFFmpegWrapper(cfg.Video, log)
	if err != nil {
		log.Warn("ffmpeg not available, video endpoints disabled", "error", err)
		ffmpeg = nil
	}

	healthMgr := health.NewManager(log)
	healthMgr.Register(health.NewModelChecker(gateway))
	healthMgr.Register(health.NewStorageChecker(store))
	healthMgr.Register(health.NewFFmpegChecker(ffmpeg))

	m := metrics.New()

	webServer := web.NewServer(cfg, gateway, store, ffmpeg, healthMgr, m, log)
	webServer.SetVersion(version)

	svcMgr := service.NewManager(log)
	if cfg.Model.Preload {
		svcMgr.Register(detect.NewPreloader(gateway, log))
	}
	svcMgr.Register(storage.NewSweeper(store, cfg.Storage.Retention, log))
	svcMgr.Register(webServer)

	if err := svcMgr.Start(ctx); err != nil {
		log.Error("Failed to start services", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}
