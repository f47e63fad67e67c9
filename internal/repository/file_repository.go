package repository

import (
	"context"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
)

// Guard inspects the current row before a mutation is applied. Returning an
// error aborts the mutation and leaves the row untouched.
type Guard func(current *domain.FileRecord) error

// FileRepository is the metadata store for FileRecords.
type FileRepository interface {
	// List returns every record. An empty store yields an empty, non-nil slice.
	List(ctx context.Context) ([]*domain.FileRecord, error)
	GetByID(ctx context.Context, id string) (*domain.FileRecord, error)
	// Create persists rec with a store-assigned id and returns the stored record.
	Create(ctx context.Context, rec *domain.FileRecord) (*domain.FileRecord, error)
	// UpdateStatus overwrites the status of id. guard may be nil.
	UpdateStatus(ctx context.Context, id string, status domain.FileStatus, guard Guard) (*domain.FileRecord, error)
	// Delete permanently removes id and returns the removed record. guard may be nil.
	Delete(ctx context.Context, id string, guard Guard) (*domain.FileRecord, error)
	Ping(ctx context.Context) error
}

// VersionGuard rejects the mutation when expected is set and differs from the row's version.
func VersionGuard(expected *int64) Guard {
	return func(current *domain.FileRecord) error {
		if expected != nil && *expected != current.Version {
			return &domain.ConflictError{ID: current.ID, Expected: *expected, Actual: current.Version}
		}
		return nil
	}
}

// Chain runs guards in order and stops at the first error.
func Chain(guards ...Guard) Guard {
	return func(current *domain.FileRecord) error {
		for _, g := range guards {
			if g == nil {
				continue
			}
			if err := g(current); err != nil {
				return err
			}
		}
		return nil
	}
}
