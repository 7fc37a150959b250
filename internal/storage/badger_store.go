package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/annel0/mapcache/internal/xtea"
	"github.com/dgraph-io/badger/v3"
)

// BadgerStore хранит контейнеры и файлы кэша в BadgerDB.
//
// Ключи:
//
//	payload:<table>:<name hash>  контейнер именованного архива
//	file:<table>:<group>:<file>  распакованный файл группы
type BadgerStore struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает хранилище в dir. Пустой dir открывает хранилище в памяти.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerStore{
		db:      db,
		isReady: true,
	}, nil
}

// Close закрывает хранилище
func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	return s.db.Close()
}

func payloadKey(table int, label string) []byte {
	return []byte(fmt.Sprintf("payload:%d:%d", table, NameHash(label)))
}

func fileKey(table, group, file int) []byte {
	return []byte(fmt.Sprintf("file:%d:%d:%d", table, group, file))
}

// PutPayload сохраняет контейнер именованного архива как есть
func (s *BadgerStore) PutPayload(table int, label string, container []byte) error {
	return s.set(payloadKey(table, label), container)
}

// PutFile сохраняет файл группы
func (s *BadgerStore) PutFile(table, group, file int, data []byte) error {
	return s.set(fileKey(table, group, file), data)
}

func (s *BadgerStore) set(key, value []byte) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

func (s *BadgerStore) get(key []byte) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, nil
}

// FetchContainer читает контейнер именованного архива как есть
func (s *BadgerStore) FetchContainer(ctx context.Context, table int, label string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.get(payloadKey(table, label))
}

// FetchPayload читает и распаковывает контейнер именованного архива
func (s *BadgerStore) FetchPayload(ctx context.Context, table int, label string, key xtea.Key) ([]byte, error) {
	raw, err := s.FetchContainer(ctx, table, label)
	if err != nil {
		return nil, err
	}
	return DecodeContainer(raw, key)
}

// ReadFile читает файл группы
func (s *BadgerStore) ReadFile(ctx context.Context, table, group, file int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.get(fileKey(table, group, file))
}

// ListGroups перечисляет группы таблицы по префиксу ключей файлов
func (s *BadgerStore) ListGroups(ctx context.Context, table int) ([]int, error) {
	prefix := []byte(fmt.Sprintf("file:%d:", table))
	seen := make(map[int]struct{})
	err := s.scan(ctx, prefix, func(rest []byte) {
		if i := bytes.IndexByte(rest, ':'); i > 0 {
			if group, err := strconv.Atoi(string(rest[:i])); err == nil {
				seen[group] = struct{}{}
			}
		}
	})
	if err != nil {
		return nil, err
	}

	groups := make([]int, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Ints(groups)
	return groups, nil
}

// ListFiles перечисляет файлы группы
func (s *BadgerStore) ListFiles(ctx context.Context, table, group int) ([]int, error) {
	prefix := []byte(fmt.Sprintf("file:%d:%d:", table, group))
	var files []int
	err := s.scan(ctx, prefix, func(rest []byte) {
		if file, err := strconv.Atoi(string(rest)); err == nil {
			files = append(files, file)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Ints(files)
	return files, nil
}

// scan вызывает fn для остатка каждого ключа с данным префиксом
func (s *BadgerStore) scan(ctx context.Context, prefix []byte, fn func(rest []byte)) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(it.Item().Key()[len(prefix):])
		}
		return nil
	})
}
