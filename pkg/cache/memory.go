package cache

import (
	"context"
	"sync"
	"time"
)

const (
	memoryDefaultMax = 1000
	memoryDefaultTTL = 7 * 24 * time.Hour
	memorySweepEvery = 5 * time.Minute
)

type memEntry struct {
	data     []byte
	expireAt time.Time
	touched  time.Time
}

// MemoryCache is the in-process Service backend: bounded size with LRU
// eviction and a background expiry sweep. Entries hold encoded bytes so reads
// behave exactly like the Redis backend.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	max     int
	sweeper *time.Ticker
}

func NewMemoryCache() *MemoryCache {
	mc := &MemoryCache{
		entries: make(map[string]*memEntry),
		max:     memoryDefaultMax,
		sweeper: time.NewTicker(memorySweepEvery),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeCacheValue(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = memoryDefaultTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if len(mc.entries) >= mc.max {
		mc.evictOldest()
	}
	now := time.Now()
	mc.entries[key] = &memEntry{data: data, expireAt: now.Add(ttl), touched: now}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.entries[key]
	if !ok {
		return ErrCacheMiss
	}
	now := time.Now()
	if now.After(e.expireAt) {
		delete(mc.entries, key)
		return ErrCacheMiss
	}
	e.touched = now
	return decodeCacheValue(e.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.entries, key)
	}
	return nil
}

// Close stops the expiry sweeper.
func (mc *MemoryCache) Close() error {
	mc.sweeper.Stop()
	return nil
}

// evictOldest drops the least recently touched entry. Caller holds mu.
func (mc *MemoryCache) evictOldest() {
	var victim string
	var oldest time.Time
	for key, e := range mc.entries {
		if victim == "" || e.touched.Before(oldest) {
			victim, oldest = key, e.touched
		}
	}
	if victim != "" {
		delete(mc.entries, victim)
	}
}

func (mc *MemoryCache) sweep() {
	for range mc.sweeper.C {
		now := time.Now()
		mc.mu.Lock()
		for key, e := range mc.entries {
			if now.After(e.expireAt) {
				delete(mc.entries, key)
			}
		}
		mc.mu.Unlock()
	}
}
