package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/api/middleware"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/cache"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/config"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository/memory"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/service"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/storage"
)

type testServer struct {
	router *gin.Engine
	store  *storage.MemoryStore
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if opts.BasePath == "" {
		opts.BasePath = "/api"
	}

	repo := memory.NewFileRepository()
	store := storage.NewMemoryStore()
	listCache := cache.NewMemoryFileListCache(4, time.Minute)
	services := &Services{
		QueryService:  service.NewQueryService(repo, listCache),
		FileService:   service.NewFileService(repo, store, listCache, service.FileServiceOptions{}),
		UploadService: service.NewUploadService(store, 1<<20),
		Health:        repo,
	}
	return &testServer{router: NewRouter(services, opts), store: store}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func multipartBody(t *testing.T, fields map[string]string, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestFilesScenario(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	w := srv.do(t, http.MethodPost, "/api/files", `{"name":"a.csv","size":120,"status":"uploading","uploadedAt":"2024-05-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, true, created["success"])
	file := created["file"].(map[string]any)
	id := file["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "uploading", file["status"])

	w = srv.do(t, http.MethodGet, "/api/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	files := decode(t, w)["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, "120 B", files[0].(map[string]any)["sizeLabel"])

	w = srv.do(t, http.MethodPatch, "/api/files/"+id, `{"status":"uploaded"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "uploaded", decode(t, w)["file"].(map[string]any)["status"])

	w = srv.do(t, http.MethodGet, "/api/files/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodDelete, "/api/files/"+id, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	deleted := decode(t, w)
	assert.Equal(t, true, deleted["success"])
	assert.Equal(t, id, deleted["id"])
	assert.Equal(t, false, deleted["objectDeleted"])

	w = srv.do(t, http.MethodGet, "/api/files", "")
	assert.Empty(t, decode(t, w)["files"])
}

func TestFilesErrorEnvelopes(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"create missing name", http.MethodPost, "/api/files", `{"size":1}`, http.StatusBadRequest},
		{"create with id", http.MethodPost, "/api/files", `{"id":"x","name":"a","size":1}`, http.StatusBadRequest},
		{"create bad timestamp", http.MethodPost, "/api/files", `{"name":"a","size":1,"uploadedAt":"yesterday"}`, http.StatusBadRequest},
		{"patch unknown id", http.MethodPatch, "/api/files/5b0f3b5e-4b7c-4f55-9f6c-3a6b2a8b9c10", `{"status":"uploaded"}`, http.StatusNotFound},
		{"patch bad status", http.MethodPatch, "/api/files/5b0f3b5e-4b7c-4f55-9f6c-3a6b2a8b9c10", `{"status":"done"}`, http.StatusBadRequest},
		{"delete unknown id", http.MethodDelete, "/api/files/not-a-uuid", "", http.StatusNotFound},
		{"delete bad version", http.MethodDelete, "/api/files/5b0f3b5e-4b7c-4f55-9f6c-3a6b2a8b9c10?version=x", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := srv.do(t, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			body := decode(t, w)
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body, "success")
		})
	}
}

func TestFilesTransitionAndVersionConflicts(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	w := srv.do(t, http.MethodPost, "/api/files", `{"name":"a.csv","size":1,"status":"uploaded"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	file := decode(t, w)["file"].(map[string]any)
	id := file["id"].(string)

	w = srv.do(t, http.MethodPatch, "/api/files/"+id, `{"status":"uploading"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodPatch, "/api/files/"+id, `{"status":"added","expectedVersion":7}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodDelete, fmt.Sprintf("/api/files/%s?version=%d", id, 1), "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{"bucket": "directory", "path": "imports/a.csv"}, "a.csv", []byte("name\nAcme\n"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "directory", out["bucket"])
	assert.Equal(t, "imports/a.csv", out["path"])
	assert.EqualValues(t, 10, out["size"])

	got, err := srv.store.GetObject(context.Background(), "directory", "imports/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "name\nAcme\n", string(got))
}

func TestUpload_EmptyBucketNeverReachesStore(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{"bucket": "", "path": "a.csv"}, "a.csv", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "bucket")
	assert.Zero(t, srv.store.Puts())
}

func TestUpload_MissingPathNeverReachesStore(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{"bucket": "directory"}, "a.csv", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "path")
	assert.Zero(t, srv.store.Puts())
}

func TestUpload_MissingFile(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	body, contentType := multipartBody(t, map[string]string{"bucket": "directory"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, srv.store.Puts())
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, RouterOptions{BasePath: "/admin"})

	w := srv.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	srv.do(t, http.MethodGet, "/admin/files", "")
	w = srv.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bizdir_http_requests_total")
}

func TestAuthGuardsAPIGroupOnly(t *testing.T) {
	auth, err := middleware.NewJWTAuth(context.Background(), config.AuthConfig{Secret: "test-secret"})
	require.NoError(t, err)
	srv := newTestServer(t, RouterOptions{Auth: auth.Middleware()})

	w := srv.do(t, http.MethodGet, "/api/files", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, decode(t, w)["error"])

	w = srv.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	w = srv.do(t, http.MethodGet, "/api/files", "", "Authorization", "Bearer "+signed)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"https://a.example.com, https://b.example.com", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
