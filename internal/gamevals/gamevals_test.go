package gamevals

import (
	"context"
	"testing"

	"github.com/annel0/mapcache/internal/buffer"
	"github.com/annel0/mapcache/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Table(t *testing.T) {
	data := []byte{1, 'a', 'r', 'e', 'a', 0, 1, 'x', 0, 2, 'y', 0, 0, 0}
	name, err := Decode(KindTable, data)
	require.NoError(t, err)
	assert.Equal(t, "area", name)

	name, err = Decode(KindTable, []byte{1, 'a', 0})
	require.NoError(t, err)
	assert.Equal(t, "a", name, "список полей может отсутствовать")

	name, err = Decode(KindTable, []byte{1, 0, 5, 'x', 0})
	require.NoError(t, err)
	assert.Empty(t, name)

	_, err = Decode(KindTable, []byte{1, 'a', 0, 1, 'x'})
	assert.ErrorIs(t, err, buffer.ErrOutOfBounds)
}

func TestDecode_Interface(t *testing.T) {
	data := []byte{'b', 'a', 'n', 'k', 0, 1, 'c', 0, 0xFF, 9, 9}
	name, err := Decode(KindInterface, data)
	require.NoError(t, err)
	assert.Equal(t, "bank", name)

	name, err = Decode(KindInterface, []byte{0, 1, 2, 0xFF})
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestDecode_Raw(t *testing.T) {
	name, err := Decode(KindRaw, []byte("dragon_scimitar"))
	require.NoError(t, err)
	assert.Equal(t, "dragon_scimitar", name)

	for _, kind := range []Kind{KindRaw, KindTable, KindInterface} {
		name, err := Decode(kind, nil)
		require.NoError(t, err)
		assert.Empty(t, name)
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTable, KindOf(GroupDBTables))
	assert.Equal(t, KindInterface, KindOf(GroupInterfaces))
	assert.Equal(t, KindRaw, KindOf(GroupObjs))
	assert.Equal(t, "locs", GroupName(GroupLocs))
	assert.Equal(t, "group42", GroupName(42))
}

func TestLoad(t *testing.T) {
	store, err := storage.NewBadgerStore("")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutFile(storage.TableGamevals, GroupObjs, 4151, []byte("abyssal_whip")))
	require.NoError(t, store.PutFile(storage.TableGamevals, GroupObjs, 1, []byte{}))
	require.NoError(t, store.PutFile(storage.TableGamevals, GroupDBTables, 3, []byte{1, 't', 'b', 'l', 0, 0}))
	require.NoError(t, store.PutFile(storage.TableGamevals, GroupInterfaces, 12, []byte{'b', 'a', 'n', 'k', 0, 0xFF}))
	require.NoError(t, store.PutFile(storage.TableGamevals, GroupInterfaces, 13, []byte{'b', 'a', 'd'}))

	names, err := Load(context.Background(), store)
	require.NoError(t, err)

	name, ok := names.Lookup(GroupObjs, 4151)
	assert.True(t, ok)
	assert.Equal(t, "abyssal_whip", name)

	_, ok = names.Lookup(GroupObjs, 1)
	assert.False(t, ok, "пустые имена пропускаются")

	assert.Equal(t, map[int]string{3: "tbl"}, names[GroupDBTables])
	assert.Equal(t, map[int]string{12: "bank"}, names[GroupInterfaces], "повреждённая запись пропускается")
}

func TestLoad_MissingTable(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	names, err := Load(context.Background(), store)
	require.NoError(t, err)
	assert.Empty(t, names)
}
