package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/mapcache/internal/cache"
	"github.com/annel0/mapcache/internal/logging"
	"github.com/annel0/mapcache/internal/vec"
	"github.com/annel0/mapcache/internal/xtea"
)

// CachingStorage кеширует архивы поверх другого Storage.
// Именованные архивы хранятся в кеше контейнерами и расшифровываются ключом каждого вызова.
// Отсутствующие архивы не кешируются.
type CachingStorage struct {
	inner Storage
	cache cache.PayloadCache
	ttl   time.Duration
}

// NewCachingStorage оборачивает inner кешем c
func NewCachingStorage(inner Storage, c cache.PayloadCache, ttl time.Duration) *CachingStorage {
	return &CachingStorage{inner: inner, cache: c, ttl: ttl}
}

// PayloadCacheKey ключ кеша именованного архива
func PayloadCacheKey(table int, label string) string {
	return fmt.Sprintf("payload:%d:%s", table, label)
}

// FileCacheKey ключ кеша файла группы
func FileCacheKey(table, group, file int) string {
	return fmt.Sprintf("file:%d:%d:%d", table, group, file)
}

func (s *CachingStorage) FetchContainer(ctx context.Context, table int, label string) ([]byte, error) {
	return s.cached(ctx, PayloadCacheKey(table, label), func() ([]byte, error) {
		return s.inner.FetchContainer(ctx, table, label)
	})
}

func (s *CachingStorage) FetchPayload(ctx context.Context, table int, label string, key xtea.Key) ([]byte, error) {
	raw, err := s.FetchContainer(ctx, table, label)
	if err != nil {
		return nil, err
	}
	return DecodeContainer(raw, key)
}

func (s *CachingStorage) ReadFile(ctx context.Context, table, group, file int) ([]byte, error) {
	return s.cached(ctx, FileCacheKey(table, group, file), func() ([]byte, error) {
		return s.inner.ReadFile(ctx, table, group, file)
	})
}

func (s *CachingStorage) ListGroups(ctx context.Context, table int) ([]int, error) {
	return s.inner.ListGroups(ctx, table)
}

func (s *CachingStorage) ListFiles(ctx context.Context, table, group int) ([]int, error) {
	return s.inner.ListFiles(ctx, table, group)
}

// Close закрывает кеш и вложенное хранилище
func (s *CachingStorage) Close() error {
	cacheErr := s.cache.Close()
	if err := s.inner.Close(); err != nil {
		return err
	}
	return cacheErr
}

func (s *CachingStorage) cached(ctx context.Context, cacheKey string, load func() ([]byte, error)) ([]byte, error) {
	data, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		return data, nil
	}
	if !cache.IsCacheMiss(err) {
		logging.Warn("Ошибка чтения кеша %s: %v", cacheKey, err)
	}

	data, err = load()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cacheKey, data, s.ttl); err != nil {
		logging.Warn("Ошибка записи кеша %s: %v", cacheKey, err)
	}
	return data, nil
}

// InvalidateRegions удаляет из кеша архивы ландшафта и расположений регионов.
// Возвращает удалённые ключи.
func (s *CachingStorage) InvalidateRegions(ctx context.Context, ids []int) ([]string, error) {
	keys := make([]string, 0, len(ids)*2)
	var errs []error
	for _, id := range ids {
		rc := vec.RegionCoordsFromID(id)
		for _, label := range []string{TerrainLabel(rc.X, rc.Y), LocationsLabel(rc.X, rc.Y)} {
			k := PayloadCacheKey(TableMaps, label)
			if err := s.cache.Invalidate(ctx, k); err != nil {
				errs = append(errs, fmt.Errorf("invalidate %s: %w", k, err))
				continue
			}
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		logging.Info("Инвалидировано %d ключей кеша для %d регионов", len(keys), len(ids))
	}
	return keys, errors.Join(errs...)
}

// HandleInvalidation удаляет ключ, пришедший от другого узла
func (s *CachingStorage) HandleInvalidation(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.cache.Invalidate(ctx, key)
}
