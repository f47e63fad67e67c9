package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
)

// MinioConfig encapsulates the connection info for MinIO / S3-compatible storage.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// MinioStore implements ObjectStorage for MinIO / S3-compatible services.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore builds a MinioStore backed by minio-go.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials must be provided")
	}

	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
		secure = true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	}
	endpoint = strings.TrimRight(endpoint, "/")

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &MinioStore{client: client}, nil
}

// PutObject uploads data to bucket/path.
func (s *MinioStore) PutObject(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if err := validatePut(bucket, path, data); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return minioError("put", bucket, path, err)
	}
	return nil
}

// GetObject downloads the object at bucket/path into memory.
func (s *MinioStore) GetObject(ctx context.Context, bucket, path string) ([]byte, error) {
	if err := validateObjectRef(bucket, path); err != nil {
		return nil, err
	}
	object, err := s.client.GetObject(ctx, bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioError("get", bucket, path, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, minioError("get", bucket, path, err)
	}
	return data, nil
}

// DeleteObject removes the object at bucket/path.
func (s *MinioStore) DeleteObject(ctx context.Context, bucket, path string) error {
	if err := validateObjectRef(bucket, path); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return minioError("delete", bucket, path, err)
	}
	return nil
}

func minioError(op, bucket, path string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 {
		return &domain.StoreError{Op: op, Bucket: bucket, Path: path, Err: err}
	}
	msg := resp.Message
	if resp.Code != "" {
		msg = fmt.Sprintf("%s: %s", resp.Code, resp.Message)
	}
	return &domain.StoreError{
		Op:         op,
		Bucket:     bucket,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}

var _ ObjectStorage = (*MinioStore)(nil)
