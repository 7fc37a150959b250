package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/annel0/mapcache/internal/xtea"
)

// FileStore читает кэш, разложенный по каталогам:
//
//	<root>/<table>/<label>.dat          контейнер именованного архива
//	<root>/<table>/<group>/<file>.dat   распакованный файл группы
type FileStore struct {
	basePath string
}

// NewFileStore создаёт файловое хранилище. Каталог должен существовать.
func NewFileStore(basePath string) (*FileStore, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("каталог кэша %s: %w", basePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("каталог кэша %s не является директорией", basePath)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) tableDir(table int) string {
	return filepath.Join(s.basePath, strconv.Itoa(table))
}

// FetchContainer читает контейнер <label>.dat без распаковки
func (s *FileStore) FetchContainer(ctx context.Context, table int, label string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readFile(filepath.Join(s.tableDir(table), label+".dat"))
}

// FetchPayload читает и распаковывает контейнер <label>.dat
func (s *FileStore) FetchPayload(ctx context.Context, table int, label string, key xtea.Key) ([]byte, error) {
	raw, err := s.FetchContainer(ctx, table, label)
	if err != nil {
		return nil, err
	}
	return DecodeContainer(raw, key)
}

// ReadFile читает файл группы
func (s *FileStore) ReadFile(ctx context.Context, table, group, file int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readFile(filepath.Join(s.tableDir(table), strconv.Itoa(group), strconv.Itoa(file)+".dat"))
}

// ListGroups перечисляет числовые подкаталоги таблицы
func (s *FileStore) ListGroups(ctx context.Context, table int) ([]int, error) {
	entries, err := readDir(s.tableDir(table))
	if err != nil {
		return nil, err
	}
	var groups []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if g, err := strconv.Atoi(e.Name()); err == nil {
			groups = append(groups, g)
		}
	}
	sort.Ints(groups)
	return groups, nil
}

// ListFiles перечисляет файлы <file>.dat группы
func (s *FileStore) ListFiles(ctx context.Context, table, group int) ([]int, error) {
	entries, err := readDir(filepath.Join(s.tableDir(table), strconv.Itoa(group)))
	if err != nil {
		return nil, err
	}
	var files []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".dat") {
			continue
		}
		if f, err := strconv.Atoi(strings.TrimSuffix(name, ".dat")); err == nil {
			files = append(files, f)
		}
	}
	sort.Ints(files)
	return files, nil
}

// Close ничего не делает: файлы открываются на время чтения
func (s *FileStore) Close() error {
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}
	return data, nil
}

func readDir(path string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога %s: %w", path, err)
	}
	return entries, nil
}
