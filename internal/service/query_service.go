package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/cache"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository"
)

type QueryService struct {
	repo  repository.FileRepository
	cache cache.FileListCache
}

func NewQueryService(repo repository.FileRepository, cacheImpl cache.FileListCache) *QueryService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopFileListCache()
	}
	return &QueryService{repo: repo, cache: cacheImpl}
}

// List returns every record shaped for display.
func (s *QueryService) List(ctx context.Context) ([]domain.FileView, error) {
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]domain.FileView, 0, len(records))
	for _, rec := range records {
		views = append(views, domain.NewFileView(rec))
	}
	return views, nil
}

func (s *QueryService) records(ctx context.Context) ([]*domain.FileRecord, error) {
	if records, ok, err := s.cache.GetList(ctx); err == nil && ok {
		return records, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("files: cache get list failed")
	}

	// taken before the store read so a concurrent mutation voids this listing
	generation, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		log.Warn().Err(genErr).Msg("files: cache generation failed")
	}

	records, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("files: list failed")
		return nil, err
	}

	if genErr != nil {
		return records, nil
	}
	if err := s.cache.SetList(ctx, generation, records); err != nil {
		log.Warn().Err(err).Msg("files: cache set list failed")
	}
	return records, nil
}
