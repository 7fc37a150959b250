package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/mapcache/internal/cache"
	"github.com/annel0/mapcache/internal/xtea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = xtea.Key{0x1234, -5678, 0x7fffffff, 42}

func TestNameHash(t *testing.T) {
	assert.Equal(t, int32(0), NameHash(""))
	assert.Equal(t, int32('a'), NameHash("a"))
	assert.Equal(t, int32('a')*31+int32('b'), NameHash("ab"))
	assert.Equal(t, NameHash("m50_50"), NameHash("M50_50"), "хеш не зависит от регистра")
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "m50_50", TerrainLabel(50, 50))
	assert.Equal(t, "l12_7", LocationsLabel(12, 7))
}

func TestContainer_RoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")

	cases := []struct {
		name        string
		compression int
		key         xtea.Key
	}{
		{"none", CompressionNone, xtea.Key{}},
		{"gzip", CompressionGzip, xtea.Key{}},
		{"none encrypted", CompressionNone, testKey},
		{"gzip encrypted", CompressionGzip, testKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			packed, err := EncodeContainer(tc.compression, payload, tc.key)
			require.NoError(t, err)

			original := append([]byte(nil), packed...)
			out, err := DecodeContainer(packed, tc.key)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
			assert.Equal(t, original, packed, "вход не должен изменяться")
		})
	}
}

func TestContainer_WrongKey(t *testing.T) {
	packed, err := EncodeContainer(CompressionGzip, []byte("secret region data"), testKey)
	require.NoError(t, err)

	_, err = DecodeContainer(packed, xtea.Key{1, 2, 3, 4})
	assert.Error(t, err, "неверный ключ даёт мусор, который не распаковывается")
}

func TestContainer_Malformed(t *testing.T) {
	_, err := DecodeContainer([]byte{0, 0}, xtea.Key{})
	assert.Error(t, err)

	_, err = DecodeContainer([]byte{9, 0, 0, 0, 1, 0, 0, 0, 1, 0}, xtea.Key{})
	assert.ErrorIs(t, err, ErrUnknownCompression)

	_, err = DecodeContainer([]byte{0, 0, 0, 0, 10, 1, 2}, xtea.Key{})
	assert.Error(t, err, "длина больше данных")

	_, err = EncodeContainer(CompressionBzip2, []byte{1}, xtea.Key{})
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestBadgerStore(t *testing.T) {
	store, err := NewBadgerStore("")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	packed, err := EncodeContainer(CompressionGzip, []byte{1, 2, 3}, xtea.Key{})
	require.NoError(t, err)
	require.NoError(t, store.PutPayload(TableMaps, "m50_50", packed))

	data, err := store.FetchPayload(ctx, TableMaps, "M50_50", xtea.Key{})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = store.FetchPayload(ctx, TableMaps, "m1_1", xtea.Key{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.PutFile(TableGamevals, 13, 0, []byte("x")))
	require.NoError(t, store.PutFile(TableGamevals, 0, 3, []byte("b")))
	require.NoError(t, store.PutFile(TableGamevals, 0, 1, []byte("a")))
	require.NoError(t, store.PutFile(240, 7, 7, []byte("other table")))

	groups, err := store.ListGroups(ctx, TableGamevals)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 13}, groups)

	files, err := store.ListFiles(ctx, TableGamevals, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, files)

	file, err := store.ReadFile(ctx, TableGamevals, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), file)

	_, err = store.ReadFile(ctx, TableGamevals, 0, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Close())
	_, err = store.ReadFile(ctx, TableGamevals, 0, 3)
	assert.Error(t, err, "закрытое хранилище")
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	packed, err := EncodeContainer(CompressionNone, []byte{9, 8, 7}, testKey)
	require.NoError(t, err)

	mapsDir := filepath.Join(dir, "5")
	require.NoError(t, os.MkdirAll(mapsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mapsDir, "l50_50.dat"), packed, 0o644))

	groupDir := filepath.Join(dir, "24", "5")
	require.NoError(t, os.MkdirAll(groupDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(groupDir, "12.dat"), []byte("loc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(groupDir, "2.dat"), []byte("door"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(groupDir, "readme.txt"), []byte("skip"), 0o644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	data, err := store.FetchPayload(ctx, TableMaps, "l50_50", testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, data)

	_, err = store.FetchPayload(ctx, TableMaps, "m50_50", xtea.Key{})
	assert.ErrorIs(t, err, ErrNotFound)

	groups, err := store.ListGroups(ctx, TableGamevals)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, groups)

	files, err := store.ListFiles(ctx, TableGamevals, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 12}, files)

	_, err = store.ListFiles(ctx, TableGamevals, 6)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewFileStore(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCachingStorage(t *testing.T) {
	inner, err := NewBadgerStore("")
	require.NoError(t, err)

	mem, err := cache.NewMemoryCache(1 << 20)
	require.NoError(t, err)

	store := NewCachingStorage(inner, mem, 0)
	defer store.Close()

	ctx := context.Background()
	first, err := EncodeContainer(CompressionNone, []byte("v1"), xtea.Key{})
	require.NoError(t, err)
	require.NoError(t, inner.PutPayload(TableMaps, "m50_50", first))

	data, err := store.FetchPayload(ctx, TableMaps, "m50_50", xtea.Key{})
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	second, err := EncodeContainer(CompressionNone, []byte("v2"), xtea.Key{})
	require.NoError(t, err)
	require.NoError(t, inner.PutPayload(TableMaps, "m50_50", second))

	data, err = store.FetchPayload(ctx, TableMaps, "m50_50", xtea.Key{})
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data, "значение берётся из кеша")

	keys, err := store.InvalidateRegions(ctx, []int{(50 << 8) | 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"payload:5:m50_50", "payload:5:l50_50"}, keys)

	data, err = store.FetchPayload(ctx, TableMaps, "m50_50", xtea.Key{})
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data, "после инвалидации читается новое значение")

	_, err = store.FetchPayload(ctx, TableMaps, "m1_1", xtea.Key{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = mem.Get(ctx, PayloadCacheKey(TableMaps, "m1_1"))
	assert.True(t, cache.IsCacheMiss(err), "отсутствующий архив не кешируется")

	require.NoError(t, store.HandleInvalidation("payload:5:m50_50"))
	_, err = mem.Get(ctx, "payload:5:m50_50")
	assert.True(t, cache.IsCacheMiss(err))
}

func TestCachingStorage_KeyPerCall(t *testing.T) {
	inner, err := NewBadgerStore("")
	require.NoError(t, err)

	mem, err := cache.NewMemoryCache(1 << 20)
	require.NoError(t, err)

	store := NewCachingStorage(inner, mem, 0)
	defer store.Close()

	ctx := context.Background()
	payload := []byte("location payload bytes 0123456789")
	right := xtea.Key{1, 2, 3, 4}
	container, err := EncodeContainer(CompressionNone, payload, right)
	require.NoError(t, err)
	require.NoError(t, inner.PutPayload(TableMaps, "l50_50", container))

	wrong, _ := store.FetchPayload(ctx, TableMaps, "l50_50", xtea.Key{9, 9, 9, 9})
	assert.NotEqual(t, payload, wrong)

	data, err := store.FetchPayload(ctx, TableMaps, "l50_50", right)
	require.NoError(t, err)
	assert.Equal(t, payload, data, "кеш не привязан к ключу первого вызова")

	cached, err := mem.Get(ctx, PayloadCacheKey(TableMaps, "l50_50"))
	require.NoError(t, err)
	assert.Equal(t, container, cached, "в кеше лежит зашифрованный контейнер")
}
