package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
)

// HTTPConfig holds the connection info for a REST object store that speaks
// PUT/GET/DELETE on {URL}/object/{bucket}/{path} with a bearer credential.
type HTTPConfig struct {
	URL        string
	Credential string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPStore implements ObjectStorage over the REST boundary.
type HTTPStore struct {
	baseURL    string
	credential string
	client     *http.Client
}

// NewHTTPStore builds an HTTPStore from explicit configuration.
func NewHTTPStore(cfg HTTPConfig) (*HTTPStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("object store url must be provided")
	}
	if cfg.Credential == "" {
		return nil, fmt.Errorf("object store credential must be provided")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid object store url: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPStore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		credential: cfg.Credential,
		client:     client,
	}, nil
}

// PutObject writes data at bucket/path, overwriting any previous object so a
// retried put has the same effect as the first one.
func (s *HTTPStore) PutObject(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if err := validatePut(bucket, path, data); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := s.newRequest(ctx, http.MethodPut, bucket, path, bytes.NewReader(data))
	if err != nil {
		return &domain.StoreError{Op: "put", Bucket: bucket, Path: path, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	req.ContentLength = int64(len(data))

	resp, err := s.client.Do(req)
	if err != nil {
		return &domain.StoreError{Op: "put", Bucket: bucket, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError("put", bucket, path, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// GetObject reads the bytes stored at bucket/path.
func (s *HTTPStore) GetObject(ctx context.Context, bucket, path string) ([]byte, error) {
	if err := validateObjectRef(bucket, path); err != nil {
		return nil, err
	}

	req, err := s.newRequest(ctx, http.MethodGet, bucket, path, nil)
	if err != nil {
		return nil, &domain.StoreError{Op: "get", Bucket: bucket, Path: path, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &domain.StoreError{Op: "get", Bucket: bucket, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("get", bucket, path, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.StoreError{Op: "get", Bucket: bucket, Path: path, Err: err}
	}
	return data, nil
}

// DeleteObject removes the object at bucket/path.
func (s *HTTPStore) DeleteObject(ctx context.Context, bucket, path string) error {
	if err := validateObjectRef(bucket, path); err != nil {
		return err
	}

	req, err := s.newRequest(ctx, http.MethodDelete, bucket, path, nil)
	if err != nil {
		return &domain.StoreError{Op: "delete", Bucket: bucket, Path: path, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &domain.StoreError{Op: "delete", Bucket: bucket, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError("delete", bucket, path, resp)
	}
	return nil
}

func (s *HTTPStore) newRequest(ctx context.Context, method, bucket, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.objectURL(bucket, path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.credential)
	return req, nil
}

func (s *HTTPStore) objectURL(bucket, path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, url.PathEscape(bucket), strings.Join(segments, "/"))
}

// responseError turns a non-2xx reply into a StoreError, keeping the backend's message.
func responseError(op, bucket, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &domain.StoreError{
		Op:         op,
		Bucket:     bucket,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    backendMessage(body),
	}
}

func backendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}

var _ ObjectStorage = (*HTTPStore)(nil)
