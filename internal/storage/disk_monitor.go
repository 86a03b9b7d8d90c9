package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// diskUsageTTL is how long one statfs sample stays fresh. Health
// checks and the stats endpoint poll often; filesystem numbers move
// slowly.
const diskUsageTTL = 30 * time.Second

// DiskUsage is a point-in-time view of the filesystem holding the
// data directory.
type DiskUsage struct {
	TotalBytes     int64   `json:"total_bytes"`
	UsedBytes      int64   `json:"used_bytes"`
	AvailableBytes int64   `json:"available_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
}

// DiskMonitor caches statfs samples for one path.
type DiskMonitor struct {
	path string

	mu        sync.Mutex
	sampledAt time.Time
	lastKnown *DiskUsage
}

// NewDiskMonitor watches the filesystem containing path.
func NewDiskMonitor(path string) *DiskMonitor {
	return &DiskMonitor{path: path}
}

// GetUsage returns the cached sample while fresh, otherwise takes a
// new one.
func (d *DiskMonitor) GetUsage() (*DiskUsage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastKnown == nil || time.Since(d.sampledAt) >= diskUsageTTL {
		usage, err := sampleDiskUsage(d.path)
		if err != nil {
			return nil, err
		}
		d.lastKnown = usage
		d.sampledAt = time.Now()
	}

	u := *d.lastKnown
	return &u, nil
}

func sampleDiskUsage(path string) (*DiskUsage, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var fs syscall.Statfs_t
	if err := syscall.Statfs(abs, &fs); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	total := int64(fs.Blocks) * int64(fs.Bsize)
	avail := int64(fs.Bavail) * int64(fs.Bsize)
	used := total - avail

	var pct float64
	if total > 0 {
		pct = float64(used) / float64(total) * 100.0
	}

	return &DiskUsage{
		TotalBytes:     total,
		UsedBytes:      used,
		AvailableBytes: avail,
		UsagePercent:   pct,
	}, nil
}
