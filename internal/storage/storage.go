package storage

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
)

const annotatedImageQuality = 90

// Store manages the prediction artifacts on disk: staged uploads under
// uploads/ and annotated results under results/. Files are keyed by the
// prediction id, so everything belonging to one prediction can be found
// by prefix.
type Store struct {
	logger     *logger.Logger
	uploadsDir string
	resultsDir string
	monitor    *DiskMonitor
}

// NewStore creates the artifact store and its directories.
func NewStore(cfg config.StorageConfig, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	if err := os.MkdirAll(cfg.ResultsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	store := &Store{
		logger:     log,
		uploadsDir: cfg.UploadsDir,
		resultsDir: cfg.ResultsDir,
		monitor:    NewDiskMonitor(cfg.DataDir),
	}

	log.Info("Storage initialized",
		"uploads_dir", cfg.UploadsDir,
		"results_dir", cfg.ResultsDir,
	)

	return store, nil
}

// NewID returns a fresh prediction id. Ids are fixed-width UUID strings,
// so one id is never a prefix of another and prefix cleanup stays exact.
func NewID() string {
	return uuid.NewString()
}

// UploadsDir returns the staged uploads directory path.
func (s *Store) UploadsDir() string {
	return s.uploadsDir
}

// ResultsDir returns the results directory path.
func (s *Store) ResultsDir() string {
	return s.resultsDir
}

// StageUpload streams an upload to uploads/<id><ext>, keeping the
// original filename's extension (lowercased).
func (s *Store) StageUpload(id, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	path := filepath.Join(s.uploadsDir, id+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: staging upload: %v", ErrWrite, err)
	}

	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: staging upload: %v", ErrWrite, err)
	}

	return path, nil
}

// PersistAnnotated writes the annotated raster to
// results/<id>_annotated.jpg.
func (s *Store) PersistAnnotated(id string, img image.Image) (string, error) {
	path := filepath.Join(s.resultsDir, id+"_annotated.jpg")

	if err := imaging.Save(img, path, imaging.JPEGQuality(annotatedImageQuality)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: persisting annotated image: %v", ErrWrite, err)
	}

	return path, nil
}

// PersistAnnotatedVideo moves a finished annotated video into
// results/<id>_annotated.mp4. Rename first; fall back to a copy when the
// source sits on another filesystem.
func (s *Store) PersistAnnotatedVideo(id, srcPath string) (string, error) {
	path := filepath.Join(s.resultsDir, id+"_annotated.mp4")

	if err := os.Rename(srcPath, path); err != nil {
		if err := copyFile(srcPath, path); err != nil {
			return "", fmt.Errorf("%w: persisting annotated video: %v", ErrWrite, err)
		}
		os.Remove(srcPath)
	}

	return path, nil
}

// Remove deletes a single stored file, tolerating files already gone.
func (s *Store) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove file", "path", path, "error", err)
	}
}

// Cleanup deletes every artifact belonging to a prediction id and
// returns the deleted base names. Cleaning an unknown id deletes
// nothing and is not an error.
func (s *Store) Cleanup(id string) ([]string, error) {
	deleted := []string{}

	for _, dir := range []string{s.uploadsDir, s.resultsDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasPrefix(entry.Name(), id) {
				continue
			}
			if err := s.remove(filepath.Join(dir, entry.Name())); err != nil {
				continue
			}
			deleted = append(deleted, entry.Name())
		}
	}

	if len(deleted) > 0 {
		s.logger.Info("Cleaned up prediction artifacts",
			"prediction_id", id,
			"deleted", len(deleted),
		)
	}

	return deleted, nil
}

func (s *Store) remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to delete file", "path", path, "error", err)
		return err
	}
	return nil
}

// Stats reports artifact counts and disk headroom for the info and
// health endpoints.
type Stats struct {
	UploadCount      int     `json:"upload_count"`
	UploadBytes      int64   `json:"upload_bytes"`
	ResultCount      int     `json:"result_count"`
	ResultBytes      int64   `json:"result_bytes"`
	DiskUsagePercent float64 `json:"disk_usage_percent"`
	AvailableBytes   int64   `json:"available_bytes"`
}

// Stats walks both directories and samples disk usage.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{}

	var err error
	stats.UploadCount, stats.UploadBytes, err = dirStats(s.uploadsDir)
	if err != nil {
		return nil, err
	}
	stats.ResultCount, stats.ResultBytes, err = dirStats(s.resultsDir)
	if err != nil {
		return nil, err
	}

	usage, err := s.monitor.GetUsage()
	if err != nil {
		return nil, err
	}
	stats.DiskUsagePercent = usage.UsagePercent
	stats.AvailableBytes = usage.AvailableBytes

	return stats, nil
}

// DiskUsage exposes the monitor for health checks.
func (s *Store) DiskUsage() (*DiskUsage, error) {
	return s.monitor.GetUsage()
}

func dirStats(dir string) (int, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	count := 0
	var bytes int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		count++
		bytes += info.Size()
	}
	return count, bytes, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
