package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzahanych/binsight/internal/config"
	"github.com/vzahanych/binsight/internal/logger"
)

func weightsConfig(t *testing.T, url string) config.ModelConfig {
	t.Helper()
	return config.ModelConfig{
		WeightsPath: filepath.Join(t.TempDir(), "weights", "best.onnx"),
		WeightsURL:  url,
	}
}

func TestEnsureWeightsDownloads(t *testing.T) {
	payload := []byte("onnx model bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	cfg := weightsConfig(t, srv.URL)
	downloaded, err := EnsureWeights(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.True(t, downloaded)

	data, err := os.ReadFile(cfg.WeightsPath)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// No temp file litter next to the weights
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(cfg.WeightsPath), ".weights-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestEnsureWeightsSkipsExistingFile(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("should not be fetched"))
	}))
	defer srv.Close()

	cfg := weightsConfig(t, srv.URL)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.WeightsPath), 0755))
	require.NoError(t, os.WriteFile(cfg.WeightsPath, []byte("already here"), 0644))

	downloaded, err := EnsureWeights(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.False(t, downloaded)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))

	data, err := os.ReadFile(cfg.WeightsPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("already here"), data)
}

func TestEnsureWeightsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := weightsConfig(t, srv.URL)
	_, err := EnsureWeights(context.Background(), cfg, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWeightsUnavailable))

	_, statErr := os.Stat(cfg.WeightsPath)
	assert.True(t, os.IsNotExist(statErr), "no weights file should appear on failure")
}

func TestEnsureWeightsEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := weightsConfig(t, srv.URL)
	_, err := EnsureWeights(context.Background(), cfg, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWeightsUnavailable))

	_, statErr := os.Stat(cfg.WeightsPath)
	assert.True(t, os.IsNotExist(statErr))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(cfg.WeightsPath), ".weights-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "failed download must clean up its temp file")
}

func TestEnsureWeightsNoURL(t *testing.T) {
	cfg := weightsConfig(t, "")
	_, err := EnsureWeights(context.Background(), cfg, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWeightsUnavailable))
}

func TestDescribeWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.onnx")
	payload := []byte("model payload")
	require.NoError(t, os.WriteFile(path, payload, 0644))

	info, err := DescribeWeights(path)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(len(payload)), info.SizeBytes)
	assert.False(t, info.Modified.IsZero())

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), info.SHA256)
}

func TestDescribeWeightsMissing(t *testing.T) {
	info, err := DescribeWeights(filepath.Join(t.TempDir(), "nope.onnx"))
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Empty(t, info.SHA256)
}
