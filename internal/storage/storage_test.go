package storage

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
)

func setupTestStore(t *testing.T) (*Store, string) {
	tmpDir := t.TempDir()

	cfg := config.StorageConfig{
		DataDir:    tmpDir,
		UploadsDir: filepath.Join(tmpDir, "uploads"),
		ResultsDir: filepath.Join(tmpDir, "results"),
	}

	store, err := NewStore(cfg, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	return store, tmpDir
}

func TestNewStore(t *testing.T) {
	store, tmpDir := setupTestStore(t)

	if store == nil {
		t.Fatal("Store should not be nil")
	}

	// Verify directories were created
	if _, err := os.Stat(filepath.Join(tmpDir, "uploads")); err != nil {
		t.Errorf("Uploads directory was not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "results")); err != nil {
		t.Errorf("Results directory was not created: %v", err)
	}
}

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 36 {
			t.Fatalf("Prediction ids must be fixed-width UUIDs, got %q (%d chars)", id, len(id))
		}
		if strings.ContainsAny(id, "/\\") {
			t.Fatalf("Prediction id %q contains path separators", id)
		}
		if seen[id] {
			t.Fatalf("Duplicate prediction id %q", id)
		}
		seen[id] = true
	}
}

func TestStageUpload(t *testing.T) {
	store, _ := setupTestStore(t)

	id := NewID()
	path, err := store.StageUpload(id, "photo.JPG", strings.NewReader("image bytes"))
	if err != nil {
		t.Fatalf("StageUpload failed: %v", err)
	}

	// Extension is kept but lowercased
	if filepath.Base(path) != id+".jpg" {
		t.Errorf("Expected staged name %s.jpg, got %s", id, filepath.Base(path))
	}
	if filepath.Dir(path) != store.UploadsDir() {
		t.Errorf("Staged upload landed outside uploads dir: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read staged upload: %v", err)
	}
	if string(data) != "image bytes" {
		t.Errorf("Staged content mismatch: %q", data)
	}
}

func TestStageUploadNoExtension(t *testing.T) {
	store, _ := setupTestStore(t)

	id := NewID()
	path, err := store.StageUpload(id, "upload", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("StageUpload failed: %v", err)
	}

	if filepath.Base(path) != id {
		t.Errorf("Expected bare id filename, got %s", filepath.Base(path))
	}
}

func TestPersistAnnotated(t *testing.T) {
	store, _ := setupTestStore(t)

	id := NewID()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	path, err := store.PersistAnnotated(id, img)
	if err != nil {
		t.Fatalf("PersistAnnotated failed: %v", err)
	}

	if filepath.Base(path) != id+"_annotated.jpg" {
		t.Errorf("Expected %s_annotated.jpg, got %s", id, filepath.Base(path))
	}

	// Round-trip decodes as a JPEG with the same dimensions
	saved, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("Annotated image does not decode: %v", err)
	}
	if saved.Bounds().Dx() != 32 || saved.Bounds().Dy() != 24 {
		t.Errorf("Annotated image resized to %dx%d", saved.Bounds().Dx(), saved.Bounds().Dy())
	}
}

func TestPersistAnnotatedVideo(t *testing.T) {
	store, tmpDir := setupTestStore(t)

	src := filepath.Join(tmpDir, "work.mp4")
	if err := os.WriteFile(src, []byte("encoded video"), 0644); err != nil {
		t.Fatalf("Failed to write source video: %v", err)
	}

	id := NewID()
	path, err := store.PersistAnnotatedVideo(id, src)
	if err != nil {
		t.Fatalf("PersistAnnotatedVideo failed: %v", err)
	}

	if filepath.Base(path) != id+"_annotated.mp4" {
		t.Errorf("Expected %s_annotated.mp4, got %s", id, filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read persisted video: %v", err)
	}
	if string(data) != "encoded video" {
		t.Errorf("Persisted content mismatch: %q", data)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("Source file should be gone after persisting")
	}
}

func TestCleanup(t *testing.T) {
	store, _ := setupTestStore(t)

	idA := NewID()
	idB := NewID()

	if _, err := store.StageUpload(idA, "a.jpg", strings.NewReader("a")); err != nil {
		t.Fatalf("StageUpload failed: %v", err)
	}
	if _, err := store.PersistAnnotated(idA, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("PersistAnnotated failed: %v", err)
	}
	stagedB, err := store.StageUpload(idB, "b.png", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("StageUpload failed: %v", err)
	}

	deleted, err := store.Cleanup(idA)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("Expected 2 deleted files, got %v", deleted)
	}
	for _, name := range deleted {
		if !strings.HasPrefix(name, idA) {
			t.Errorf("Deleted file %s does not belong to %s", name, idA)
		}
	}

	// The other prediction is untouched
	if _, err := os.Stat(stagedB); err != nil {
		t.Errorf("Cleanup removed another prediction's file: %v", err)
	}

	// Cleaning again finds nothing and stays quiet
	deleted, err = store.Cleanup(idA)
	if err != nil {
		t.Fatalf("Second cleanup failed: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("Second cleanup should delete nothing, got %v", deleted)
	}
}

func TestCleanupUnknownID(t *testing.T) {
	store, _ := setupTestStore(t)

	deleted, err := store.Cleanup(NewID())
	if err != nil {
		t.Fatalf("Cleanup of unknown id failed: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("Expected no deletions, got %v", deleted)
	}
}

func TestRemove(t *testing.T) {
	store, _ := setupTestStore(t)

	path, err := store.StageUpload(NewID(), "x.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("StageUpload failed: %v", err)
	}

	store.Remove(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Remove should delete the file")
	}

	// Removing a missing file is fine
	store.Remove(path)
}

func TestStats(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.StageUpload(NewID(), "a.jpg", strings.NewReader("12345")); err != nil {
		t.Fatalf("StageUpload failed: %v", err)
	}
	if _, err := store.PersistAnnotated(NewID(), image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("PersistAnnotated failed: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.UploadCount != 1 {
		t.Errorf("Expected 1 upload, got %d", stats.UploadCount)
	}
	if stats.UploadBytes != 5 {
		t.Errorf("Expected 5 upload bytes, got %d", stats.UploadBytes)
	}
	if stats.ResultCount != 1 {
		t.Errorf("Expected 1 result, got %d", stats.ResultCount)
	}
	if stats.ResultBytes == 0 {
		t.Error("Result bytes should not be zero")
	}
	if stats.AvailableBytes <= 0 {
		t.Error("Available bytes should be positive")
	}
}
