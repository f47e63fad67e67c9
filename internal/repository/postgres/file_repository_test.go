package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/config"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository"
)

// setupTestDB starts a PostgreSQL container, applies migrations and returns a connected DB.
func setupTestDB(t *testing.T, driver string) *DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("bizdir_test"),
		tcpostgres.WithUsername("bizdir"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Driver:   driver,
		Host:     host,
		Port:     port.Port(),
		User:     "bizdir",
		Password: "test-password",
		DBName:   "bizdir_test",
		SSLMode:  "disable",
	}
	require.NoError(t, Migrate(cfg.MigrateURL()))

	db, err := NewDB(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func TestFileRepository_Lifecycle(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			repo := NewFileRepository(setupTestDB(t, driver))
			ctx := context.Background()

			list, err := repo.List(ctx)
			require.NoError(t, err)
			require.NotNil(t, list)
			assert.Empty(t, list)

			uploadedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			created, err := repo.Create(ctx, &domain.FileRecord{
				Name:        "listings.csv",
				Size:        1200,
				UploadedAt:  uploadedAt,
				Status:      domain.FileStatusUploading,
				Bucket:      strPtr("directory"),
				StoragePath: strPtr("imports/listings.csv"),
			})
			require.NoError(t, err)
			require.NotEmpty(t, created.ID)
			assert.EqualValues(t, 1, created.Version)
			assert.True(t, created.UploadedAt.Equal(uploadedAt))

			updated, err := repo.UpdateStatus(ctx, created.ID, domain.FileStatusUploaded, nil)
			require.NoError(t, err)
			assert.Equal(t, domain.FileStatusUploaded, updated.Status)
			assert.EqualValues(t, 2, updated.Version)

			stale := int64(1)
			_, err = repo.UpdateStatus(ctx, created.ID, domain.FileStatusAdded, repository.VersionGuard(&stale))
			assert.ErrorIs(t, err, domain.ErrConflict)

			got, err := repo.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.FileStatusUploaded, got.Status)

			removed, err := repo.Delete(ctx, created.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "imports/listings.csv", *removed.StoragePath)

			_, err = repo.Delete(ctx, created.ID, nil)
			assert.ErrorIs(t, err, domain.ErrNotFound)

			list, err = repo.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestFileRepository_MissingIDs(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t, "postgres"))
	ctx := context.Background()

	for _, id := range []string{"not-a-uuid", "6f1c1c8e-2b7a-4d55-9a57-0f3c2c1f1a11"} {
		_, err := repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
		_, err = repo.UpdateStatus(ctx, id, domain.FileStatusFailed, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
		_, err = repo.Delete(ctx, id, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
	}
}

func TestFileRepository_CheckConstraintBecomesPersistenceError(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t, "postgres"))

	_, err := repo.Create(context.Background(), &domain.FileRecord{
		Name:   "bad.csv",
		Size:   -1,
		Status: domain.FileStatusUploading,
	})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestFileRepository_ConcurrentUpdatesLastWriterWins(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t, "pgx"))
	ctx := context.Background()

	rec, err := repo.Create(ctx, &domain.FileRecord{Name: "a.csv", Size: 1, Status: domain.FileStatusUploading})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := domain.FileStatusFailed
			if i%2 == 0 {
				status = domain.FileStatusUploading
			}
			_, err := repo.UpdateStatus(ctx, rec.ID, status, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 9, got.Version)
}
