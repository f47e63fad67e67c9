package storage

import (
	"context"
	"strings"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
)

// ObjectStorage captures the bucket/path operations the upload flow needs.
// Implementations hold no state between calls and never retry.
type ObjectStorage interface {
	PutObject(ctx context.Context, bucket, path string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, path string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, path string) error
}

// validateObjectRef rejects empty coordinates before any network interaction.
func validateObjectRef(bucket, path string) error {
	if strings.TrimSpace(bucket) == "" {
		return domain.NewValidationError("bucket", "is required")
	}
	if strings.TrimSpace(path) == "" {
		return domain.NewValidationError("path", "is required")
	}
	return nil
}

func validatePut(bucket, path string, data []byte) error {
	if err := validateObjectRef(bucket, path); err != nil {
		return err
	}
	if len(data) == 0 {
		return domain.NewValidationError("file", "is empty")
	}
	return nil
}
