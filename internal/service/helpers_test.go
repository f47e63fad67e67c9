package service

import (
	"context"
	"net/http"
	"sync"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/storage"
)

// countingStore records every call that reaches the object store boundary.
type countingStore struct {
	inner storage.ObjectStorage

	mu         sync.Mutex
	puts       int
	deletes    int
	failPut    bool
	failDelete bool
}

func newCountingStore() *countingStore {
	return &countingStore{inner: storage.NewMemoryStore()}
}

func (c *countingStore) PutObject(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	c.mu.Lock()
	c.puts++
	fail := c.failPut
	c.mu.Unlock()
	if fail {
		return &domain.StoreError{Op: "put", Bucket: bucket, Path: path, StatusCode: http.StatusServiceUnavailable, Message: "backend unavailable"}
	}
	return c.inner.PutObject(ctx, bucket, path, data, contentType)
}

func (c *countingStore) GetObject(ctx context.Context, bucket, path string) ([]byte, error) {
	return c.inner.GetObject(ctx, bucket, path)
}

func (c *countingStore) DeleteObject(ctx context.Context, bucket, path string) error {
	c.mu.Lock()
	c.deletes++
	fail := c.failDelete
	c.mu.Unlock()
	if fail {
		return &domain.StoreError{Op: "delete", Bucket: bucket, Path: path, StatusCode: http.StatusInternalServerError, Message: "boom"}
	}
	return c.inner.DeleteObject(ctx, bucket, path)
}

func (c *countingStore) putCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

func (c *countingStore) deleteCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deletes
}

func int64Ptr(v int64) *int64 { return &v }
