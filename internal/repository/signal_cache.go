package repository

import (
	"context"
	"errors"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	pkgcache "SignalForge/pkg/cache"
)

// CacheSignalCache stores the latest per-key aggregate behind the generic
// cache service (memory, Redis, or layered).
type CacheSignalCache struct {
	svc pkgcache.Service
	ttl time.Duration
}

func NewCacheSignalCache(svc pkgcache.Service, ttl time.Duration) *CacheSignalCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CacheSignalCache{svc: svc, ttl: ttl}
}

func cacheKey(key domrepo.Key) string {
	return pkgcache.GenerateKey("signals:latest", key.String())
}

func (c *CacheSignalCache) SetLatest(ctx context.Context, key domrepo.Key, agg *models.AggregateSignals) error {
	return c.svc.Set(ctx, cacheKey(key), agg, c.ttl)
}

func (c *CacheSignalCache) GetLatest(ctx context.Context, key domrepo.Key) (*models.AggregateSignals, bool, error) {
	var agg models.AggregateSignals
	err := c.svc.Get(ctx, cacheKey(key), &agg)
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &agg, true, nil
}

func (c *CacheSignalCache) Close() error {
	return c.svc.Close()
}

var _ domrepo.SignalCache = (*CacheSignalCache)(nil)
