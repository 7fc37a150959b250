// Package xtea хранит ключи XTEA, которыми зашифрованы архивы расположений регионов.
package xtea

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/annel0/mapcache/internal/logging"
)

// Key ключ из четырёх 32-битных слов
type Key [4]int32

// IsZero сообщает, что ключ нулевой (архив не зашифрован)
func (k Key) IsZero() bool {
	return k == Key{}
}

// Record запись файла ключей
type Record struct {
	Archive   int     `json:"archive"`
	NameHash  int64   `json:"name_hash"`
	Name      string  `json:"name"`
	Mapsquare int     `json:"mapsquare"`
	Key       []int32 `json:"key"`
}

// KeyProvider выдаёт ключ для региона. Реализуется Registry и Snapshot.
type KeyProvider interface {
	Key(mapsquare int) (Key, bool)
}

// Snapshot глубокая копия записей реестра, индексированная по mapsquare
type Snapshot map[int]Record

// Key возвращает ключ из снимка
func (s Snapshot) Key(mapsquare int) (Key, bool) {
	rec, ok := s[mapsquare]
	if !ok {
		return Key{}, false
	}
	return toKey(rec.Key), true
}

// Registry реестр ключей. Перезагрузка заменяет содержимое целиком.
type Registry struct {
	mu      sync.RWMutex
	records map[int]Record
	keys    map[int]Key
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[int]Record),
		keys:    make(map[int]Key),
	}
}

// Load загружает файл ключей. Отсутствующий или битый файл не является фатальной
// ошибкой: реестр остаётся пустым, ошибка только логируется и возвращается для информации.
func (r *Registry) Load(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[int]Record)
	r.keys = make(map[int]Key)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warn("Файл ключей %s не найден, реестр пуст", path)
		} else {
			logging.Error("Ошибка чтения файла ключей %s: %v", path, err)
		}
		return fmt.Errorf("read keys %s: %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		logging.Error("Ошибка разбора файла ключей %s: %v", path, err)
		return fmt.Errorf("parse keys %s: %w", path, err)
	}

	r.putLocked(records)
	logging.Info("Загружено %d ключей из %s", len(r.keys), path)
	return nil
}

// Put добавляет записи поверх текущих (используется при сборке реестра в коде и тестах)
func (r *Registry) Put(records ...Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(records)
}

func (r *Registry) putLocked(records []Record) {
	for _, rec := range records {
		if len(rec.Key) != 4 {
			logging.Warn("Пропущен ключ для mapsquare %d: ожидалось 4 слова, получено %d", rec.Mapsquare, len(rec.Key))
			continue
		}
		rec.Key = append([]int32(nil), rec.Key...)
		r.records[rec.Mapsquare] = rec
		r.keys[rec.Mapsquare] = toKey(rec.Key)
	}
}

// Key возвращает ключ для региона
func (r *Registry) Key(mapsquare int) (Key, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[mapsquare]
	return k, ok
}

// Record возвращает полную запись для региона
func (r *Registry) Record(mapsquare int) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[mapsquare]
	if ok {
		rec.Key = append([]int32(nil), rec.Key...)
	}
	return rec, ok
}

// Len количество загруженных ключей
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Snapshot делает глубокую копию записей
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(Snapshot, len(r.records))
	for id, rec := range r.records {
		rec.Key = append([]int32(nil), rec.Key...)
		snap[id] = rec
	}
	return snap
}

// Diff возвращает отсортированные mapsquare, ключ которых изменился по значению
// или появился в newSnap. Удалённые из newSnap регионы не сообщаются.
func Diff(oldSnap, newSnap Snapshot) []int {
	var changed []int
	for id, rec := range newSnap {
		prev, ok := oldSnap[id]
		if !ok || !equalKeys(prev.Key, rec.Key) {
			changed = append(changed, id)
		}
	}
	sort.Ints(changed)
	return changed
}

func equalKeys(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toKey(words []int32) Key {
	var k Key
	copy(k[:], words)
	return k
}
