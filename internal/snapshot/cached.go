package snapshot

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"camproxy/internal/cache"
)

// Cached decorates a Source with a TTL check in front of a cache.Cache.
// Concurrent misses for one URL share a single upstream fetch.
type Cached struct {
	inner  Source
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
	now    func() time.Time
	logger *zap.Logger
}

func NewCached(inner Source, store cache.Cache, ttl time.Duration, logger *zap.Logger) *Cached {
	return &Cached{
		inner:  inner,
		cache:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

func (c *Cached) Snapshot(ctx context.Context, sourceURL string) (*Image, error) {
	if ent, ok := c.cache.Get(sourceURL); ok {
		if ent.Fresh(c.ttl, c.now()) {
			return &Image{
				Data:        ent.Data,
				ContentType: ent.ContentType,
				CacheStatus: StatusHit,
			}, nil
		}
		c.logger.Debug("Cached image is stale",
			zap.String("source_url", sourceURL),
			zap.Duration("age", c.now().Sub(ent.InsertedAt)))
	}

	// The shared fetch must not die with whichever caller started it; the
	// fetcher's own deadline still bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(sourceURL, func() (any, error) {
		img, err := c.inner.Snapshot(fetchCtx, sourceURL)
		if err != nil {
			return nil, err
		}
		c.cache.Put(sourceURL, img.Data, img.ContentType)
		return img, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		img := *res.Val.(*Image)
		img.CacheStatus = StatusMiss
		return &img, nil
	}
}

// Stats exposes the underlying cache counters.
func (c *Cached) Stats() cache.Stats {
	return c.cache.Stats()
}
