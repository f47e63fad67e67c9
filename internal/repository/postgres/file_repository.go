package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository"
)

const fileRecordColumns = `id, name, size, uploaded_at, status, bucket, storage_path, version, created_at, updated_at`

type fileRepository struct {
	db *DB
}

func NewFileRepository(db *DB) *fileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) List(ctx context.Context) ([]*domain.FileRecord, error) {
	records := make([]*domain.FileRecord, 0)
	query := `SELECT ` + fileRecordColumns + ` FROM file_records ORDER BY uploaded_at DESC, id`
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, persistenceError("list", err)
	}
	return records, nil
}

func (r *fileRepository) GetByID(ctx context.Context, id string) (*domain.FileRecord, error) {
	if !validID(id) {
		return nil, &domain.NotFoundError{ID: id}
	}
	var rec domain.FileRecord
	query := `SELECT ` + fileRecordColumns + ` FROM file_records WHERE id = $1`
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{ID: id}
		}
		return nil, persistenceError("get", err)
	}
	return &rec, nil
}

func (r *fileRepository) Create(ctx context.Context, rec *domain.FileRecord) (*domain.FileRecord, error) {
	query := `
		INSERT INTO file_records (name, size, uploaded_at, status, bucket, storage_path)
		VALUES ($1, $2, COALESCE($3, NOW()), $4, $5, $6)
		RETURNING ` + fileRecordColumns

	uploadedAt := sql.NullTime{Time: rec.UploadedAt, Valid: !rec.UploadedAt.IsZero()}

	var stored domain.FileRecord
	err := r.db.QueryRowxContext(ctx, query,
		rec.Name, rec.Size, uploadedAt, rec.Status, rec.Bucket, rec.StoragePath,
	).StructScan(&stored)
	if err != nil {
		return nil, persistenceError("create", err)
	}
	return &stored, nil
}

func (r *fileRepository) UpdateStatus(ctx context.Context, id string, status domain.FileStatus, guard repository.Guard) (*domain.FileRecord, error) {
	if !validID(id) {
		return nil, &domain.NotFoundError{ID: id}
	}

	var updated domain.FileRecord
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}

		query := `
			UPDATE file_records
			SET status = $2, version = version + 1, updated_at = NOW()
			WHERE id = $1
			RETURNING ` + fileRecordColumns
		if err := tx.QueryRowxContext(ctx, query, id, status).StructScan(&updated); err != nil {
			return persistenceError("update status", err)
		}
		return nil
	})
	if err != nil {
		return nil, asDomainError("update status", err)
	}
	return &updated, nil
}

func (r *fileRepository) Delete(ctx context.Context, id string, guard repository.Guard) (*domain.FileRecord, error) {
	if !validID(id) {
		return nil, &domain.NotFoundError{ID: id}
	}

	var removed *domain.FileRecord
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM file_records WHERE id = $1`, id); err != nil {
			return persistenceError("delete", err)
		}
		removed = current
		return nil
	})
	if err != nil {
		return nil, asDomainError("delete", err)
	}
	return removed, nil
}

func (r *fileRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return persistenceError("ping", err)
	}
	return nil
}

// lockRecord reads the row under FOR UPDATE so the guard sees the value being overwritten.
func lockRecord(ctx context.Context, tx *sqlx.Tx, id string) (*domain.FileRecord, error) {
	var rec domain.FileRecord
	query := `SELECT ` + fileRecordColumns + ` FROM file_records WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{ID: id}
		}
		return nil, persistenceError("lock", err)
	}
	return &rec, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func persistenceError(op string, err error) error {
	return &domain.PersistenceError{Op: op, Err: errors.WithStack(err)}
}

// asDomainError passes domain errors through and wraps transaction plumbing failures.
func asDomainError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrTransition),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrPersistence):
		return err
	default:
		return persistenceError(op, err)
	}
}

var _ repository.FileRepository = (*fileRepository)(nil)
