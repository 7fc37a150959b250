package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// MemoryCache внутрипроцессный кеш на ristretto. Стоимость записи равна её размеру в байтах.
type MemoryCache struct {
	cache *ristretto.Cache[string, []byte]

	hits   int64
	misses int64
}

// NewMemoryCache создаёт кеш с ограничением maxBytes
func NewMemoryCache(maxBytes int64) (*MemoryCache, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	c, err := ristretto.NewCache[string, []byte](&ristretto.Config[string, []byte]{
		NumCounters: 100000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{cache: c}, nil
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	val, ok := m.cache.Get(key)
	if !ok {
		atomic.AddInt64(&m.misses, 1)
		return nil, ErrCacheMiss
	}
	atomic.AddInt64(&m.hits, 1)
	return val, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}
	m.cache.SetWithTTL(key, value, cost, ttl)
	m.cache.Wait()
	return nil
}

func (m *MemoryCache) Invalidate(ctx context.Context, key string) error {
	m.cache.Del(key)
	m.cache.Wait()
	return nil
}

func (m *MemoryCache) Close() error {
	m.cache.Close()
	return nil
}

// GetMetrics возвращает счётчики попаданий
func (m *MemoryCache) GetMetrics() *CacheMetrics {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	metrics := &CacheMetrics{
		TotalRequests: hits + misses,
		CacheHits:     hits,
		CacheMisses:   misses,
		LastUpdate:    time.Now(),
	}
	if metrics.TotalRequests > 0 {
		metrics.HitRatio = float64(hits) / float64(metrics.TotalRequests)
	}
	return metrics
}
