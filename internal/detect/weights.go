package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
)

// EnsureWeights makes sure the weights file exists locally, downloading it
// from the configured URL when absent. It reports whether a download took
// place. The download goes to a temp file in the destination directory and
// is renamed into place, so a partial fetch never leaves a truncated
// weights file.
func EnsureWeights(ctx context.Context, cfg config.ModelConfig, log *logger.Logger) (bool, error) {
	if info, err := os.Stat(cfg.WeightsPath); err == nil && info.Size() > 0 {
		return false, nil
	}

	if cfg.WeightsURL == "" {
		return false, fmt.Errorf("%w: %s is absent and no weights_url is configured", ErrWeightsUnavailable, cfg.WeightsPath)
	}

	log.Info("Downloading model weights",
		"url", cfg.WeightsURL,
		"path", cfg.WeightsPath,
	)

	destDir := filepath.Dir(cfg.WeightsPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return false, fmt.Errorf("%w: creating weights directory: %v", ErrWeightsUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.WeightsURL, nil)
	if err != nil {
		return false, fmt.Errorf("%w: building request: %v", ErrWeightsUnavailable, err)
	}

	client := &http.Client{Timeout: cfg.DownloadTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: fetching %s: %v", ErrWeightsUnavailable, cfg.WeightsURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: fetching %s: status %d", ErrWeightsUnavailable, cfg.WeightsURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(destDir, ".weights-*")
	if err != nil {
		return false, fmt.Errorf("%w: creating temp file: %v", ErrWeightsUnavailable, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, fmt.Errorf("%w: writing weights: %v", ErrWeightsUnavailable, err)
	}
	if written == 0 {
		return false, fmt.Errorf("%w: fetched an empty weights file from %s", ErrWeightsUnavailable, cfg.WeightsURL)
	}

	if err := os.Rename(tmpPath, cfg.WeightsPath); err != nil {
		return false, fmt.Errorf("%w: placing weights file: %v", ErrWeightsUnavailable, err)
	}

	log.Info("Model weights downloaded",
		"path", cfg.WeightsPath,
		"size_bytes", written,
	)
	return true, nil
}

// WeightsInfo describes the weights file on disk.
type WeightsInfo struct {
	Exists    bool      `json:"exists"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
	Modified  time.Time `json:"modified,omitempty"`
	SHA256    string    `json:"sha256,omitempty"`
}

// DescribeWeights stats the weights file and, when present, hashes it.
func DescribeWeights(path string) (WeightsInfo, error) {
	info := WeightsInfo{Path: path}

	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("stat weights file: %w", err)
	}

	info.Exists = true
	info.SizeBytes = stat.Size()
	info.Modified = stat.ModTime()

	f, err := os.Open(path)
	if err != nil {
		return info, fmt.Errorf("open weights file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return info, fmt.Errorf("hash weights file: %w", err)
	}
	info.SHA256 = hex.EncodeToString(h.Sum(nil))

	return info, nil
}
