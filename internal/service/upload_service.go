package service

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/storage"
)

const defaultMaxUploadBytes = 50 << 20

// UploadRequest is one file bound for the object store.
type UploadRequest struct {
	Filename    string
	ContentType string
	Data        []byte
	Bucket      string
	Path        string
}

type UploadResult struct {
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// UploadService places bytes in the object store. It never writes metadata;
// callers create the FileRecord once they know the outcome.
type UploadService struct {
	store    storage.ObjectStorage
	maxBytes int64
}

func NewUploadService(store storage.ObjectStorage, maxBytes int64) *UploadService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &UploadService{store: store, maxBytes: maxBytes}
}

// MaxBytes is the largest payload Upload accepts.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	objectPath, err := s.Validate(req)
	if err != nil {
		uploadsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectContentType(req.Filename, req.Data)
	}

	if err := s.store.PutObject(ctx, req.Bucket, objectPath, req.Data, contentType); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		event := log.Error().Err(err).Str("bucket", req.Bucket).Str("path", objectPath)
		var se *domain.StoreError
		if errors.As(err, &se) {
			event = event.Int("status_code", se.StatusCode)
		}
		event.Msg("upload: object store put failed")
		return nil, err
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	uploadBytesTotal.Add(float64(len(req.Data)))
	log.Info().
		Str("bucket", req.Bucket).
		Str("path", objectPath).
		Int("size", len(req.Data)).
		Msg("upload: stored object")

	return &UploadResult{
		Bucket:      req.Bucket,
		Path:        objectPath,
		Size:        int64(len(req.Data)),
		ContentType: contentType,
	}, nil
}

// Validate checks req without touching the object store and returns the cleaned path.
func (s *UploadService) Validate(req UploadRequest) (string, error) {
	if len(req.Data) == 0 {
		return "", domain.NewValidationError("file", "is required")
	}
	if int64(len(req.Data)) > s.maxBytes {
		return "", domain.NewValidationError("file", "exceeds the upload size limit")
	}
	if strings.TrimSpace(req.Bucket) == "" {
		return "", domain.NewValidationError("bucket", "is required")
	}
	return CleanObjectPath(req.Path)
}

// CleanObjectPath normalizes a destination path and rejects traversal segments.
func CleanObjectPath(raw string) (string, error) {
	p := strings.Trim(strings.TrimSpace(raw), "/")
	if p == "" {
		return "", domain.NewValidationError("path", "is required")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", domain.NewValidationError("path", "must not contain '..'")
		}
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", domain.NewValidationError("path", "is required")
	}
	return cleaned, nil
}

func detectContentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
