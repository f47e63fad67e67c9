package storage

import (
	"context"
	"net/http"
	"sync"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
)

// MemoryStore keeps objects in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	puts    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func memoryKey(bucket, path string) string {
	return bucket + "/" + path
}

func (s *MemoryStore) PutObject(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if err := validatePut(bucket, path, data); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: "put", Bucket: bucket, Path: path, Err: err}
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[memoryKey(bucket, path)] = buf
	s.puts++
	return nil
}

func (s *MemoryStore) GetObject(ctx context.Context, bucket, path string) ([]byte, error) {
	if err := validateObjectRef(bucket, path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[memoryKey(bucket, path)]
	if !ok {
		return nil, &domain.StoreError{Op: "get", Bucket: bucket, Path: path, StatusCode: http.StatusNotFound, Message: "object not found"}
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (s *MemoryStore) DeleteObject(ctx context.Context, bucket, path string) error {
	if err := validateObjectRef(bucket, path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(bucket, path)
	if _, ok := s.objects[key]; !ok {
		return &domain.StoreError{Op: "delete", Bucket: bucket, Path: path, StatusCode: http.StatusNotFound, Message: "object not found"}
	}
	delete(s.objects, key)
	return nil
}

// Puts returns how many successful writes reached the store.
func (s *MemoryStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var _ ObjectStorage = (*MemoryStore)(nil)
