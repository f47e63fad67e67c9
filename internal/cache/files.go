package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/config"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
)

const (
	fileListKeyPrefix  = "files:list:"
	fileListGeneration = "files:gen"
)

func fileListKey(generation int64) string {
	return fileListKeyPrefix + strconv.FormatInt(generation, 10)
}

var fileListLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bizdir_file_list_cache_lookups_total",
	Help: "File list cache lookups by result.",
}, []string{"result"})

// FileListCache holds the last listing of file records. Every lifecycle
// mutation must call Invalidate, which advances the generation.
//
// Readers take Generation before reading the metadata store and hand it to
// SetList; a listing read before an Invalidate is never stored.
type FileListCache interface {
	Generation(ctx context.Context) (int64, error)
	GetList(ctx context.Context) ([]*domain.FileRecord, bool, error)
	SetList(ctx context.Context, generation int64, records []*domain.FileRecord) error
	Invalidate(ctx context.Context) error
	Close() error
}

// NewFileListCache picks the backend from cfg. A disabled cache is a no-op.
func NewFileListCache(ctx context.Context, cfg config.CacheConfig) (FileListCache, error) {
	if !cfg.Enabled {
		return NewNoopFileListCache(), nil
	}

	switch cfg.Driver {
	case "memory":
		return NewMemoryFileListCache(cfg.MemorySize, cacheTTL(cfg)), nil
	case "", "redis":
		client, err := newRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisFileListCache(client, cacheTTL(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Driver)
	}
}

type redisFileListCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFileListCache(client *redis.Client, ttl time.Duration) FileListCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisFileListCache{client: client, ttl: ttl}
}

func (c *redisFileListCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, fileListGeneration).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

func (c *redisFileListCache) GetList(ctx context.Context) ([]*domain.FileRecord, bool, error) {
	gen, err := c.Generation(ctx)
	if err != nil {
		return nil, false, err
	}

	payload, err := c.client.Get(ctx, fileListKey(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		fileListLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var records []*domain.FileRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, false, fmt.Errorf("decode file list cache: %w", err)
	}
	if records == nil {
		records = []*domain.FileRecord{}
	}
	fileListLookups.WithLabelValues("hit").Inc()
	return records, true, nil
}

// SetList writes under the generation's own key, so a listing from an
// older generation lands on a key no reader looks up and expires with its TTL.
func (c *redisFileListCache) SetList(ctx context.Context, generation int64, records []*domain.FileRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode file list cache: %w", err)
	}
	if err := c.client.Set(ctx, fileListKey(generation), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisFileListCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, fileListGeneration).Err(); err != nil {
		return fmt.Errorf("redis incr generation failed: %w", err)
	}
	return deleteKeysWithPrefix(ctx, c.client, fileListKeyPrefix, scanBatchSize)
}

func (c *redisFileListCache) Close() error {
	return c.client.Close()
}

// memoryFileListCache keeps the listing in a per-process expirable LRU.
type memoryFileListCache struct {
	mu         sync.Mutex
	generation int64
	lru        *expirable.LRU[string, []*domain.FileRecord]
}

func NewMemoryFileListCache(size int, ttl time.Duration) FileListCache {
	if size <= 0 {
		size = 16
	}
	return &memoryFileListCache{
		lru: expirable.NewLRU[string, []*domain.FileRecord](size, nil, ttl),
	}
}

func (c *memoryFileListCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *memoryFileListCache) GetList(ctx context.Context) ([]*domain.FileRecord, bool, error) {
	c.mu.Lock()
	records, ok := c.lru.Get(fileListKey(c.generation))
	c.mu.Unlock()
	if !ok {
		fileListLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	fileListLookups.WithLabelValues("hit").Inc()
	return cloneRecords(records), true, nil
}

func (c *memoryFileListCache) SetList(ctx context.Context, generation int64, records []*domain.FileRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		fileListLookups.WithLabelValues("stale").Inc()
		return nil
	}
	c.lru.Add(fileListKey(generation), cloneRecords(records))
	return nil
}

func (c *memoryFileListCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.lru.Purge()
	return nil
}

func (c *memoryFileListCache) Close() error { return nil }

type noopFileListCache struct{}

func NewNoopFileListCache() FileListCache {
	return &noopFileListCache{}
}

func (n *noopFileListCache) Generation(ctx context.Context) (int64, error) { return 0, nil }

func (n *noopFileListCache) GetList(ctx context.Context) ([]*domain.FileRecord, bool, error) {
	return nil, false, nil
}

func (n *noopFileListCache) SetList(ctx context.Context, generation int64, records []*domain.FileRecord) error {
	return nil
}

func (n *noopFileListCache) Invalidate(ctx context.Context) error { return nil }

func (n *noopFileListCache) Close() error { return nil }

func cloneRecords(records []*domain.FileRecord) []*domain.FileRecord {
	out := make([]*domain.FileRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
