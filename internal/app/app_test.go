package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/config"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/storage"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{BasePath: "/api", MaxUploadBytes: 1 << 20},
		Database: config.DatabaseConfig{Driver: "memory"},
		Storage:  config.StorageConfig{Driver: "memory"},
		Files:    config.FilesConfig{TransitionPolicy: "strict"},
	}
}

func TestNew_MemoryBackends(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(), Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Files)
	assert.NotNil(t, a.Runner)
	assert.Nil(t, a.Drive)

	router, err := a.Router(ctx)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AuthEnabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.Secret = "s3cret"
	a, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer a.Close()

	router, err := a.Router(context.Background())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewObjectStorage(t *testing.T) {
	s, err := NewObjectStorage(config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, s)

	s, err = NewObjectStorage(config.StorageConfig{Driver: "http", URL: "https://store.example.com", Credential: "tok"})
	require.NoError(t, err)
	assert.IsType(t, &storage.HTTPStore{}, s)

	s, err = NewObjectStorage(config.StorageConfig{Driver: "minio", URL: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.IsType(t, &storage.MinioStore{}, s)

	_, err = NewObjectStorage(config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)

	_, err = NewObjectStorage(config.StorageConfig{Driver: "http"})
	assert.Error(t, err)
}
