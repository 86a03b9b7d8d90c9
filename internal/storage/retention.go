package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
	"github.com/vzahanych/binsight/internal/service"
)

// warnDiskUsagePercent is the usage level that raises a storage warning
// event after a sweep.
const warnDiskUsagePercent = 90.0

// Sweeper periodically deletes prediction artifacts older than the
// retention window. Age is judged by file modification time, so staged
// uploads and results expire together.
type Sweeper struct {
	*service.ServiceBase
	store *Store
	cfg   config.RetentionConfig

	mu       sync.Mutex
	sweeping bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSweeper creates a retention sweeper for the store.
func NewSweeper(store *Store, cfg config.RetentionConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		ServiceBase: service.NewServiceBase("retention-sweeper", log),
		store:       store,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the sweep loop. A disabled sweeper starts and stops
// cleanly without touching the store.
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.LogInfo("Retention sweeping disabled")
		close(s.doneCh)
		return nil
	}

	s.LogInfo("Retention sweeper started",
		"max_age", s.cfg.MaxAge.String(),
		"sweep_interval", s.cfg.SweepInterval.String(),
	)

	go s.run(ctx)
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.LogError("Retention sweep failed", err)
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	close(s.stopCh)
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep deletes artifacts older than the retention window and returns
// how many files were removed. Only one sweep runs at a time.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		return 0, fmt.Errorf("a sweep is already running")
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	cutoff := time.Now().Add(-s.cfg.MaxAge)
	deleted := 0

	for _, dir := range []string{s.store.UploadsDir(), s.store.ResultsDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return deleted, fmt.Errorf("failed to read %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.LogError("Failed to delete expired file", err, "path", path)
				continue
			}
			deleted++
		}
	}

	if deleted > 0 {
		s.LogInfo("Deleted expired artifacts", "count", deleted)
		s.PublishEvent(service.EventTypeRetentionSweep, map[string]interface{}{
			"deleted": deleted,
		})
	}

	s.checkDiskHeadroom()

	return deleted, nil
}

// checkDiskHeadroom raises a warning event when the data filesystem is
// nearly full.
func (s *Sweeper) checkDiskHeadroom() {
	usage, err := s.store.DiskUsage()
	if err != nil {
		return
	}

	if usage.UsagePercent >= warnDiskUsagePercent {
		s.LogInfo("Disk usage above warning threshold",
			"usage_percent", usage.UsagePercent,
			"available_bytes", usage.AvailableBytes,
		)
		s.PublishEvent(service.EventTypeStorageWarning, map[string]interface{}{
			"usage_percent":   usage.UsagePercent,
			"available_bytes": usage.AvailableBytes,
		})
	}
}
