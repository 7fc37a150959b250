// Package gamevals разбирает таблицу имён игровых значений (gamevals).
package gamevals

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/mapcache/internal/buffer"
	"github.com/annel0/mapcache/internal/logging"
	"github.com/annel0/mapcache/internal/storage"
)

// Kind формат записей группы
type Kind int

const (
	// KindRaw вся запись является именем
	KindRaw Kind = iota
	// KindTable имя таблицы и список полей
	KindTable
	// KindInterface имя интерфейса и список компонентов до 0xFF
	KindInterface
)

// Группы таблицы gamevals
const (
	GroupObjs       = 0
	GroupNpcs       = 1
	GroupInvs       = 2
	GroupVarps      = 3
	GroupVarbits    = 4
	GroupLocs       = 5
	GroupSeqs       = 6
	GroupSpotanims  = 7
	GroupDBRows     = 9
	GroupDBTables   = 10
	GroupInterfaces = 13
)

var groupNames = map[int]string{
	GroupObjs:       "objs",
	GroupNpcs:       "npcs",
	GroupInvs:       "invs",
	GroupVarps:      "varps",
	GroupVarbits:    "varbits",
	GroupLocs:       "locs",
	GroupSeqs:       "seqs",
	GroupSpotanims:  "spotanims",
	GroupDBRows:     "dbrows",
	GroupDBTables:   "dbtables",
	GroupInterfaces: "interfaces",
}

// GroupName имя группы для логов и вывода
func GroupName(group int) string {
	if name, ok := groupNames[group]; ok {
		return name
	}
	return fmt.Sprintf("group%d", group)
}

// KindOf формат записей группы
func KindOf(group int) Kind {
	switch group {
	case GroupDBTables:
		return KindTable
	case GroupInterfaces:
		return KindInterface
	default:
		return KindRaw
	}
}

// Decode извлекает имя из записи. Пустые данные дают пустое имя.
func Decode(kind Kind, data []byte) (string, error) {
	if data == nil {
		return "", nil
	}
	switch kind {
	case KindTable:
		return decodeTable(buffer.New(data))
	case KindInterface:
		return decodeInterface(buffer.New(data))
	default:
		return string(data), nil
	}
}

func decodeTable(c *buffer.Cursor) (string, error) {
	if _, err := c.ReadU8(); err != nil {
		return "", err
	}
	name, err := c.ReadString()
	if err != nil || name == "" {
		return "", err
	}

	// имена полей не нужны, но запись должна разбираться целиком
	for c.Remaining() > 0 {
		if _, err := c.ReadU8(); err != nil {
			return "", err
		}
		field, err := c.ReadString()
		if err != nil {
			return "", err
		}
		if field == "" {
			break
		}
	}
	return name, nil
}

func decodeInterface(c *buffer.Cursor) (string, error) {
	name, err := c.ReadString()
	if err != nil || name == "" {
		return "", err
	}
	for c.Remaining() > 0 {
		b, err := c.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0xFF {
			break
		}
	}
	return name, nil
}

// Names имена по группам и файлам
type Names map[int]map[int]string

// Lookup имя файла группы
func (n Names) Lookup(group, file int) (string, bool) {
	name, ok := n[group][file]
	return name, ok
}

// Load читает все группы таблицы gamevals. Записи с пустыми именами пропускаются.
// Отсутствие таблицы даёт пустой результат без ошибки.
func Load(ctx context.Context, src storage.Storage) (Names, error) {
	groups, err := src.ListGroups(ctx, storage.TableGamevals)
	if errors.Is(err, storage.ErrNotFound) {
		return Names{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gamevals groups: %w", err)
	}

	names := make(Names, len(groups))
	for _, group := range groups {
		files, err := src.ListFiles(ctx, storage.TableGamevals, group)
		if err != nil {
			return nil, fmt.Errorf("gamevals %s: %w", GroupName(group), err)
		}

		kind := KindOf(group)
		entries := make(map[int]string, len(files))
		for _, file := range files {
			data, err := src.ReadFile(ctx, storage.TableGamevals, group, file)
			if err != nil {
				return nil, fmt.Errorf("gamevals %s/%d: %w", GroupName(group), file, err)
			}
			name, err := Decode(kind, data)
			if err != nil {
				logging.Warn("Не удалось разобрать gameval %s/%d: %v", GroupName(group), file, err)
				continue
			}
			if name != "" {
				entries[file] = name
			}
		}

		names[group] = entries
		logging.Debug("gamevals %s: %d имён", GroupName(group), len(entries))
	}
	return names, nil
}
