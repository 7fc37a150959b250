// Package storage отдаёт сырые байты архивов кэша по (таблица, архив, файл).
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/mapcache/internal/xtea"
)

// Номера таблиц кэша
const (
	TableMaps     = 5
	TableGamevals = 24
)

// ErrNotFound архива нет в хранилище. Это ожидаемое состояние, а не ошибка формата.
var ErrNotFound = errors.New("storage: not found")

// Storage источник данных кэша
type Storage interface {
	// FetchPayload возвращает распакованные (и расшифрованные ключом) данные именованного архива.
	// Нулевой ключ означает отсутствие шифрования.
	FetchPayload(ctx context.Context, table int, label string, key xtea.Key) ([]byte, error)

	// FetchContainer возвращает контейнер именованного архива без распаковки
	FetchContainer(ctx context.Context, table int, label string) ([]byte, error)

	// ListGroups возвращает отсортированные номера групп таблицы
	ListGroups(ctx context.Context, table int) ([]int, error)

	// ListFiles возвращает отсортированные номера файлов группы
	ListFiles(ctx context.Context, table, group int) ([]int, error)

	// ReadFile возвращает содержимое файла группы
	ReadFile(ctx context.Context, table, group, file int) ([]byte, error)

	// Close закрывает хранилище
	Close() error
}

// NameHash хеш имени архива, как его считает кэш (djb2 с множителем 31)
func NameHash(label string) int32 {
	var h int32
	for _, c := range strings.ToLower(label) {
		h = h*31 + int32(c)
	}
	return h
}

// TerrainLabel имя архива ландшафта региона
func TerrainLabel(regionX, regionY int) string {
	return fmt.Sprintf("m%d_%d", regionX, regionY)
}

// LocationsLabel имя архива расположений региона
func LocationsLabel(regionX, regionY int) string {
	return fmt.Sprintf("l%d_%d", regionX, regionY)
}
