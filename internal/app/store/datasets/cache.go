// internal/app/store/datasets/cache.go
package datasetstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/dkpmalut/lautdata/internal/app/system/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how long a cached dataset is served without a reload.
const DefaultTTL = 10 * time.Minute

// Source reads a complete dataset. *Fetcher implements it.
type Source interface {
	FetchAll(ctx context.Context, dataset string, columns []string) ([]stats.Record, error)
}

type cacheEntry struct {
	rows     []stats.Record
	loadedAt time.Time
}

// Cache keeps the raw rows of each dataset in memory, shared across
// requests. Concurrent misses for one dataset trigger a single read.
// Invalidate drops an entry and discards any read already in flight for
// it, so rows written by an import are visible on the next Get.
//
// Returned slices are shared between callers and must not be modified.
// A dataset is always cached under the columns of the first read; callers
// are expected to request the same projection for a dataset every time.
type Cache struct {
	src       Source
	ttl       time.Duration
	fetchTime time.Duration
	log       *zap.Logger
	metrics   *metrics.Registry
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	gen     map[string]uint64
	epoch   uint64

	group singleflight.Group
}

// NewCache returns a Cache over src. ttl <= 0 uses DefaultTTL. fetchTimeout
// bounds each underlying read independently of the requesting context, so
// one cancelled request does not fail the callers sharing its read.
func NewCache(src Source, ttl, fetchTimeout time.Duration, log *zap.Logger, m *metrics.Registry) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if fetchTimeout <= 0 {
		fetchTimeout = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		src:       src,
		ttl:       ttl,
		fetchTime: fetchTimeout,
		log:       log,
		metrics:   m,
		now:       time.Now,
		entries:   make(map[string]cacheEntry),
		gen:       make(map[string]uint64),
	}
}

// Get returns the rows of one dataset, reading it on a miss or when the
// cached copy is older than the TTL.
func (c *Cache) Get(ctx context.Context, dataset string, columns []string) ([]stats.Record, error) {
	c.mu.Lock()
	e, ok := c.entries[dataset]
	gen, epoch := c.gen[dataset], c.epoch
	c.mu.Unlock()

	if ok && c.now().Sub(e.loadedAt) < c.ttl {
		c.metrics.CacheEvent(dataset, metrics.CacheHit)
		return e.rows, nil
	}
	c.metrics.CacheEvent(dataset, metrics.CacheMiss)

	key := fmt.Sprintf("%s#%d.%d", dataset, epoch, gen)
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTime)
		defer cancel()

		rows, err := c.src.FetchAll(fctx, dataset, columns)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen[dataset] == gen && c.epoch == epoch {
			c.entries[dataset] = cacheEntry{rows: rows, loadedAt: c.now()}
		}
		c.mu.Unlock()
		return rows, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]stats.Record), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", dataset, ctx.Err())
	}
}

// LoadMany reads several datasets concurrently through the cache. Any
// failure discards the whole batch.
func (c *Cache) LoadMany(ctx context.Context, reqs []Request) (map[string][]stats.Record, error) {
	return fetchConcurrently(ctx, reqs, c.Get)
}

// Invalidate drops the cached rows of one dataset.
func (c *Cache) Invalidate(dataset string) {
	c.mu.Lock()
	delete(c.entries, dataset)
	c.gen[dataset]++
	c.mu.Unlock()

	c.metrics.CacheEvent(dataset, metrics.CacheInvalidate)
	c.log.Debug("dataset cache invalidated", zap.String("dataset", dataset))
}

// InvalidateAll drops every cached dataset.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	c.epoch++
	c.mu.Unlock()

	c.log.Debug("dataset cache cleared", zap.Int("entries", n))
}

// Cached reports whether a fresh copy of dataset is held.
func (c *Cache) Cached(dataset string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[dataset]
	return ok && c.now().Sub(e.loadedAt) < c.ttl
}
