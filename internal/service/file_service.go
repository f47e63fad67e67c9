package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/cache"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/storage"
)

type FileServiceOptions struct {
	Policy domain.TransitionPolicy
	// DeleteObjects removes the stored bytes after the record is deleted.
	DeleteObjects      bool
	RequireStoragePath bool
}

// FileService owns the FileRecord lifecycle: create, status changes and delete.
type FileService struct {
	repo  repository.FileRepository
	store storage.ObjectStorage
	cache cache.FileListCache
	opts  FileServiceOptions
	now   func() time.Time
}

func NewFileService(repo repository.FileRepository, store storage.ObjectStorage, cacheImpl cache.FileListCache, opts FileServiceOptions) *FileService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopFileListCache()
	}
	if opts.Policy == "" {
		opts.Policy = domain.TransitionPolicyStrict
	}
	return &FileService{
		repo:  repo,
		store: store,
		cache: cacheImpl,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// DeleteResult reports what a delete removed.
type DeleteResult struct {
	Record        *domain.FileRecord
	ObjectDeleted bool
}

func (s *FileService) Create(ctx context.Context, in domain.NewFileRecord) (*domain.FileRecord, error) {
	rec, err := s.buildRecord(in)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("name", rec.Name).Msg("files: create failed")
		return nil, err
	}
	s.invalidate(ctx)

	log.Info().
		Str("id", created.ID).
		Str("name", created.Name).
		Str("status", string(created.Status)).
		Msg("files: record created")
	return created, nil
}

func (s *FileService) buildRecord(in domain.NewFileRecord) (*domain.FileRecord, error) {
	if strings.TrimSpace(in.ID) != "" {
		return nil, domain.NewValidationError("id", "is assigned by the metadata store and must be omitted")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if in.Size == nil {
		return nil, domain.NewValidationError("size", "is required")
	}
	if *in.Size < 0 {
		return nil, domain.NewValidationError("size", "must be >= 0")
	}

	status := domain.FileStatusUploading
	if strings.TrimSpace(in.Status) != "" {
		parsed, ok := domain.ParseFileStatus(in.Status)
		if !ok {
			return nil, domain.NewValidationError("status", "must be one of uploading, uploaded, failed")
		}
		status = parsed
	}
	if err := domain.CheckInitialStatus(status); err != nil {
		return nil, err
	}

	rec := &domain.FileRecord{
		Name:       name,
		Size:       *in.Size,
		UploadedAt: in.UploadedAt.Time,
		Status:     status,
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = s.now()
	}
	if b := strings.TrimSpace(in.Bucket); b != "" {
		rec.Bucket = &b
	}
	if p := strings.TrimSpace(in.StoragePath); p != "" {
		cleaned, err := CleanObjectPath(p)
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				ve.Field = "storagePath"
			}
			return nil, err
		}
		rec.StoragePath = &cleaned
	}
	if err := s.checkStoragePath(rec, status); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *FileService) Get(ctx context.Context, id string) (*domain.FileRecord, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateStatus moves a record to rawStatus. With expectedVersion nil the write
// is last-writer-wins; otherwise a stale version yields a ConflictError.
func (s *FileService) UpdateStatus(ctx context.Context, id, rawStatus string, expectedVersion *int64) (*domain.FileRecord, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	to, ok := domain.ParseFileStatus(rawStatus)
	if !ok {
		statusRejectionsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewValidationError("status", "must be one of uploading, uploaded, failed, added")
	}

	var from domain.FileStatus
	guard := repository.Chain(
		repository.VersionGuard(expectedVersion),
		func(current *domain.FileRecord) error {
			from = current.Status
			if err := domain.CheckTransition(s.opts.Policy, current, to); err != nil {
				return err
			}
			return s.checkStoragePath(current, to)
		},
	)

	updated, err := s.repo.UpdateStatus(ctx, id, to, guard)
	if err != nil {
		s.logMutationError(err, "update status", id)
		return nil, err
	}
	s.invalidate(ctx)

	statusTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	log.Info().
		Str("id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Int64("version", updated.Version).
		Msg("files: status updated")
	return updated, nil
}

// Delete removes the record. When DeleteObjects is on, the stored bytes are
// removed afterwards; a failed object delete is reported, not rolled back.
func (s *FileService) Delete(ctx context.Context, id string, expectedVersion *int64) (*DeleteResult, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	removed, err := s.repo.Delete(ctx, id, repository.VersionGuard(expectedVersion))
	if err != nil {
		s.logMutationError(err, "delete", id)
		return nil, err
	}
	s.invalidate(ctx)

	result := &DeleteResult{Record: removed}
	bucket, path := removed.Location()
	switch {
	case bucket == "" || path == "":
		log.Info().Str("id", id).Msg("files: record deleted, no stored object recorded")
	case !s.opts.DeleteObjects:
		log.Info().Str("id", id).Str("bucket", bucket).Str("path", path).
			Msg("files: record deleted, stored object left in place")
	case s.store == nil:
		log.Warn().Str("id", id).Msg("files: object deletion enabled without an object store")
	default:
		if err := s.store.DeleteObject(ctx, bucket, path); err != nil {
			log.Warn().Err(err).Str("id", id).Str("bucket", bucket).Str("path", path).
				Msg("files: record deleted but stored object could not be removed")
		} else {
			result.ObjectDeleted = true
			log.Info().Str("id", id).Str("bucket", bucket).Str("path", path).
				Msg("files: record and stored object deleted")
		}
	}
	return result, nil
}

func (s *FileService) checkStoragePath(rec *domain.FileRecord, to domain.FileStatus) error {
	err := domain.CheckStoragePath(rec, to)
	if err == nil {
		return nil
	}
	if s.opts.RequireStoragePath {
		return err
	}
	log.Warn().Str("id", rec.ID).Str("status", string(to)).Msg("files: record marked uploaded without a storage path")
	return nil
}

func (s *FileService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("files: cache invalidate failed")
	}
}

func (s *FileService) logMutationError(err error, op, id string) {
	switch {
	case errors.Is(err, domain.ErrTransition):
		statusRejectionsTotal.WithLabelValues("transition").Inc()
		log.Warn().Err(err).Str("id", id).Msgf("files: %s rejected", op)
	case errors.Is(err, domain.ErrConflict):
		statusRejectionsTotal.WithLabelValues("conflict").Inc()
		log.Warn().Err(err).Str("id", id).Msgf("files: %s rejected", op)
	case errors.Is(err, domain.ErrValidation):
		statusRejectionsTotal.WithLabelValues("validation").Inc()
		log.Warn().Err(err).Str("id", id).Msgf("files: %s rejected", op)
	case errors.Is(err, domain.ErrNotFound):
		log.Info().Str("id", id).Msgf("files: %s on missing record", op)
	default:
		log.Error().Stack().Err(err).Str("id", id).Msgf("files: %s failed", op)
	}
}

// checkID treats malformed ids as missing records.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &domain.NotFoundError{ID: id}
	}
	return nil
}
