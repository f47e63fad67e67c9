package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/config"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
)

func sampleRecords() []*domain.FileRecord {
	path := "imports/a.csv"
	return []*domain.FileRecord{{
		ID:          "6f1c1c8e-2b7a-4d55-9a57-0f3c2c1f1a11",
		Name:        "a.csv",
		Size:        10,
		UploadedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:      domain.FileStatusUploaded,
		StoragePath: &path,
		Version:     2,
	}}
}

func TestMemoryFileListCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryFileListCache(4, time.Minute)

	_, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	records := sampleRecords()
	require.NoError(t, c.SetList(ctx, 0, records))
	*records[0].StoragePath = "mutated"

	got, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "imports/a.csv", *got[0].StoragePath)

	require.NoError(t, c.Invalidate(ctx))
	_, ok, _ = c.GetList(ctx)
	assert.False(t, ok)
}

func TestMemoryFileListCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryFileListCache(4, 20*time.Millisecond)
	require.NoError(t, c.SetList(ctx, 0, sampleRecords()))

	assert.Eventually(t, func() bool {
		_, ok, _ := c.GetList(ctx)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestNewFileListCache_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileListCache(ctx, config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.SetList(ctx, 0, sampleRecords()))
	_, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryFileListCache_DropsListingFromOlderGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryFileListCache(4, time.Minute)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))

	require.NoError(t, c.SetList(ctx, gen, sampleRecords()))
	_, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "listing read before invalidate must not be served")

	gen, err = c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetList(ctx, gen, sampleRecords()))
	_, ok, err = c.GetList(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:pw@redis.internal:6379/1"})
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 1, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestRedisFileListCache(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	c, err := NewFileListCache(ctx, config.CacheConfig{
		Enabled:   true,
		Driver:    "redis",
		RedisHost: host,
		RedisPort: port.Port(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetList(ctx, gen, sampleRecords()))
	got, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.csv", got[0].Name)
	assert.True(t, got[0].UploadedAt.Equal(sampleRecords()[0].UploadedAt))

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.GetList(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	rc := c.(*redisFileListCache).client
	assert.ErrorIs(t, rc.Get(ctx, fileListKey(gen)).Err(), redis.Nil)

	// a listing from the pre-invalidate generation stays invisible
	require.NoError(t, c.SetList(ctx, gen, sampleRecords()))
	_, ok, err = c.GetList(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
