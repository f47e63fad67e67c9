// Package memory provides an in-process FileRepository for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository"
)

type fileRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.FileRecord
	now     func() time.Time
}

// NewFileRepository returns an empty in-memory repository.
func NewFileRepository() *fileRepository {
	return &fileRepository{
		records: make(map[string]*domain.FileRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *fileRepository) List(ctx context.Context) ([]*domain.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.FileRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fileRepository) GetByID(ctx context.Context, id string) (*domain.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	return rec.Clone(), nil
}

func (r *fileRepository) Create(ctx context.Context, rec *domain.FileRecord) (*domain.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "create", Err: err}
	}
	stored := rec.Clone()
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	stored.ID = uuid.NewString()
	for _, taken := r.records[stored.ID]; taken; _, taken = r.records[stored.ID] {
		stored.ID = uuid.NewString()
	}
	if stored.UploadedAt.IsZero() {
		stored.UploadedAt = now
	}
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.records[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *fileRepository) UpdateStatus(ctx context.Context, id string, status domain.FileStatus, guard repository.Guard) (*domain.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	if guard != nil {
		if err := guard(rec.Clone()); err != nil {
			return nil, err
		}
	}
	rec.Status = status
	rec.Version++
	rec.UpdatedAt = r.now()
	return rec.Clone(), nil
}

func (r *fileRepository) Delete(ctx context.Context, id string, guard repository.Guard) (*domain.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	if guard != nil {
		if err := guard(rec.Clone()); err != nil {
			return nil, err
		}
	}
	delete(r.records, id)
	return rec, nil
}

func (r *fileRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

var _ repository.FileRepository = (*fileRepository)(nil)
