package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/mapcache/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisCache реализует PayloadCache поверх Redis.
// Общий кеш для нескольких загрузчиков, работающих с одним кэшем карты.
type RedisCache struct {
	client      *redis.Client
	config      *RedisConfig
	invalidator CacheInvalidator

	metrics      CacheMetrics
	metricsMutex sync.RWMutex

	// Статистика latency
	latencySum   int64 // в наносекундах
	latencyCount int64
	maxLatency   int64
}

// RedisConfig параметры подключения к Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Prefix добавляется ко всем ключам
	Prefix string `yaml:"prefix"`

	DefaultTTL  time.Duration `yaml:"default_ttl"`
	MaxTTL      time.Duration `yaml:"max_ttl"`
	PoolSize    int           `yaml:"pool_size"`
	PoolTimeout time.Duration `yaml:"pool_timeout"`
}

// NewRedisCache подключается к Redis и проверяет соединение.
//
// Параметры:
//
//	config - параметры подключения
//	invalidator - опциональный invalidator для Pub/Sub (может быть nil)
func NewRedisCache(config *RedisConfig, invalidator CacheInvalidator) (*RedisCache, error) {
	applyRedisDefaults(config)

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		PoolTimeout:  config.PoolTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis cache initialized: %s (prefix: %q)", config.Addr, config.Prefix)
	return NewRedisCacheWithClient(rdb, config, invalidator), nil
}

// NewRedisCacheWithClient оборачивает готовый клиент без проверки соединения.
func NewRedisCacheWithClient(client *redis.Client, config *RedisConfig, invalidator CacheInvalidator) *RedisCache {
	applyRedisDefaults(config)
	return &RedisCache{
		client:      client,
		config:      config,
		invalidator: invalidator,
		metrics: CacheMetrics{
			LastUpdate: time.Now(),
		},
	}
}

func applyRedisDefaults(config *RedisConfig) {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 10 * time.Minute
	}
	if config.MaxTTL == 0 {
		config.MaxTTL = 24 * time.Hour
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.PoolTimeout == 0 {
		config.PoolTimeout = 30 * time.Second
	}
}

func (r *RedisCache) key(key string) string {
	return r.config.Prefix + key
}

// Get получает значение по ключу из Redis.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	start := time.Now()
	defer r.recordLatency(start)

	atomic.AddInt64(&r.metrics.TotalRequests, 1)

	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == nil {
		atomic.AddInt64(&r.metrics.CacheHits, 1)
		return val, nil
	}

	atomic.AddInt64(&r.metrics.CacheMisses, 1)
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}

	logging.Error("Redis Get error for key %s: %v", key, err)
	return nil, fmt.Errorf("redis get error: %w", err)
}

// Set сохраняет значение. TTL = 0 заменяется на DefaultTTL, TTL больше MaxTTL обрезается.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	start := time.Now()
	defer r.recordLatency(start)

	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}
	if ttl > r.config.MaxTTL {
		ttl = r.config.MaxTTL
	}

	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		logging.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Invalidate удаляет ключ и отправляет уведомление об инвалидации.
func (r *RedisCache) Invalidate(ctx context.Context, key string) error {
	start := time.Now()
	defer r.recordLatency(start)

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		logging.Error("Redis Delete error for key %s: %v", key, err)
		return fmt.Errorf("redis delete error: %w", err)
	}

	if r.invalidator != nil {
		if err := r.invalidator.PublishInvalidation(ctx, key); err != nil {
			logging.Error("Failed to publish invalidation for key %s: %v", key, err)
		}
	}
	return nil
}

// Close закрывает соединение с Redis.
func (r *RedisCache) Close() error {
	if err := r.client.Close(); err != nil {
		logging.Error("Error closing Redis connection: %v", err)
		return err
	}
	logging.Info("Redis cache closed")
	return nil
}

// GetMetrics возвращает текущие метрики кеша.
func (r *RedisCache) GetMetrics() *CacheMetrics {
	hits := atomic.LoadInt64(&r.metrics.CacheHits)
	misses := atomic.LoadInt64(&r.metrics.CacheMisses)

	r.metricsMutex.RLock()
	metrics := CacheMetrics{
		TotalRequests: atomic.LoadInt64(&r.metrics.TotalRequests),
		CacheHits:     hits,
		CacheMisses:   misses,
		AvgLatencyMs:  r.metrics.AvgLatencyMs,
		MaxLatencyMs:  r.metrics.MaxLatencyMs,
		LastUpdate:    time.Now(),
	}
	r.metricsMutex.RUnlock()

	if total := hits + misses; total > 0 {
		metrics.HitRatio = float64(hits) / float64(total)
	}
	return &metrics
}

// recordLatency записывает latency метрику.
func (r *RedisCache) recordLatency(start time.Time) {
	latency := time.Since(start).Nanoseconds()

	atomic.AddInt64(&r.latencySum, latency)
	count := atomic.AddInt64(&r.latencyCount, 1)

	for {
		current := atomic.LoadInt64(&r.maxLatency)
		if latency <= current || atomic.CompareAndSwapInt64(&r.maxLatency, current, latency) {
			break
		}
	}

	if count%100 == 0 {
		sum := atomic.LoadInt64(&r.latencySum)
		max := atomic.LoadInt64(&r.maxLatency)

		r.metricsMutex.Lock()
		r.metrics.AvgLatencyMs = float64(sum) / float64(count) / 1e6
		r.metrics.MaxLatencyMs = float64(max) / 1e6
		r.metricsMutex.Unlock()
	}
}
