package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetInvalidate(t *testing.T) {
	c, err := NewMemoryCache(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()

	_, err = c.Get(ctx, "payload:5:m50_50")
	assert.True(t, IsCacheMiss(err), "пустой кеш должен возвращать промах")

	require.NoError(t, c.Set(ctx, "payload:5:m50_50", []byte{1, 2, 3}, 0))

	data, err := c.Get(ctx, "payload:5:m50_50")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	require.NoError(t, c.Invalidate(ctx, "payload:5:m50_50"))
	_, err = c.Get(ctx, "payload:5:m50_50")
	assert.ErrorIs(t, err, ErrCacheMiss)

	metrics := c.GetMetrics()
	assert.Equal(t, int64(3), metrics.TotalRequests)
	assert.Equal(t, int64(1), metrics.CacheHits)
	assert.InDelta(t, 1.0/3.0, metrics.HitRatio, 0.0001)
}

func TestMemoryCache_EmptyKey(t *testing.T) {
	c, err := NewMemoryCache(0)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, c.Set(context.Background(), "", []byte{1}, time.Minute), ErrInvalidKey)
}

func TestNATSInvalidator_HandleMessage(t *testing.T) {
	n := newInvalidator(nil, &InvalidatorConfig{}, "node-a")
	assert.Equal(t, "mapcache.invalidation", n.subject)

	var received []string
	n.handler = func(key string) error {
		received = append(received, key)
		return nil
	}

	remote := newInvalidator(nil, &InvalidatorConfig{}, "node-b")
	data, err := remote.encode("payload:5:l50_50", "key_rotation")
	require.NoError(t, err)

	n.handleMessage(data)
	n.handleMessage(data)
	assert.Equal(t, []string{"payload:5:l50_50"}, received, "повтор в окне дедупликации игнорируется")

	own, err := n.encode("payload:5:m1_1", "key_rotation")
	require.NoError(t, err)
	n.handleMessage(own)
	assert.Len(t, received, 1, "собственные сообщения игнорируются")

	n.handleMessage([]byte("not json"))
	assert.Equal(t, int64(1), n.GetMetrics()["errors_count"])
}

func TestNATSInvalidator_HandlerError(t *testing.T) {
	n := newInvalidator(nil, &InvalidatorConfig{}, "")
	assert.NotEmpty(t, n.NodeID(), "пустой nodeID заменяется UUID")

	n.handler = func(key string) error { return errors.New("boom") }

	raw, err := json.Marshal(&InvalidationMessage{Key: "k", NodeID: "other", Timestamp: time.Now()})
	require.NoError(t, err)
	n.handleMessage(raw)

	assert.Equal(t, int64(1), n.GetMetrics()["errors_count"])
	assert.Equal(t, int64(1), n.GetMetrics()["received_count"])
}

func TestNATSInvalidator_DedupeCleanup(t *testing.T) {
	n := newInvalidator(nil, &InvalidatorConfig{DedupeWindow: time.Millisecond}, "node")
	n.recordKey("old")
	time.Sleep(5 * time.Millisecond)

	assert.False(t, n.isDuplicate("old"))
	n.cleanupDedupe()
	assert.Empty(t, n.recentKeys)
}

type recordingInvalidator struct {
	published []string
}

func (r *recordingInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	r.published = append(r.published, key)
	return nil
}

func (r *recordingInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	return nil
}

func (r *recordingInvalidator) Close() error { return nil }

func unreachableRedis(t *testing.T, inv CacheInvalidator) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisCacheWithClient(client, &RedisConfig{Prefix: "mc:"}, inv)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCache_KeyPrefixAndDefaults(t *testing.T) {
	c := unreachableRedis(t, nil)

	assert.Equal(t, "mc:payload:5:m50_50", c.key("payload:5:m50_50"))
	assert.Equal(t, 10*time.Minute, c.config.DefaultTTL)
	assert.Equal(t, 24*time.Hour, c.config.MaxTTL)
	assert.Equal(t, 10, c.config.PoolSize)
}

func TestRedisCache_Unreachable(t *testing.T) {
	inv := &recordingInvalidator{}
	c := unreachableRedis(t, inv)
	ctx := context.Background()

	_, err := c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, c.Set(ctx, "", []byte{1}, 0), ErrInvalidKey)

	_, err = c.Get(ctx, "payload:5:m50_50")
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err), "ошибка соединения не считается промахом")

	assert.Error(t, c.Set(ctx, "payload:5:m50_50", []byte{1}, time.Hour))
	assert.Error(t, c.Invalidate(ctx, "payload:5:m50_50"))
	assert.Empty(t, inv.published, "при ошибке удаления уведомление не рассылается")

	metrics := c.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRequests)
	assert.Equal(t, int64(1), metrics.CacheMisses)
	assert.Zero(t, metrics.HitRatio)
}

func TestRegisterCollector(t *testing.T) {
	c, err := NewMemoryCache(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	inv := newInvalidator(nil, &InvalidatorConfig{}, "node-a")
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterCollector(reg, c, inv))

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte{1}, 0))
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "missing")
	inv.handleMessage([]byte("not json"))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP mapcache_cache_hits_total Попадания в кеш архивов.
# TYPE mapcache_cache_hits_total counter
mapcache_cache_hits_total 1
# HELP mapcache_cache_hit_ratio Доля попаданий в кеш архивов.
# TYPE mapcache_cache_hit_ratio gauge
mapcache_cache_hit_ratio 0.5
# HELP mapcache_invalidation_errors_total Ошибки обработки уведомлений об инвалидации.
# TYPE mapcache_invalidation_errors_total counter
mapcache_invalidation_errors_total 1
`), "mapcache_cache_hits_total", "mapcache_cache_hit_ratio", "mapcache_invalidation_errors_total"))

	assert.Error(t, RegisterCollector(reg, c, nil), "повторная регистрация отклоняется")
}
