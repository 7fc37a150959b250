package logging

import (
	"fmt"
	"sync"
)

// Компоненты с отдельными файлами логов
const (
	ComponentKeys = "keys"
)

var components = struct {
	mu      sync.Mutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Component возвращает логгер компонента с порогом консоли level.
// Повторный вызов отдаёт тот же логгер и только обновляет порог.
// Если файл создать нельзя, логгер пишет в консоль.
func Component(name string, level LogLevel) *Logger {
	components.mu.Lock()
	defer components.mu.Unlock()

	if l, ok := components.loggers[name]; ok {
		l.SetConsoleLevel(level)
		return l
	}

	l, err := NewLogger(name)
	if err != nil {
		Warn("Логгер %s без файла: %v", name, err)
		l = newConsoleLogger(name, level)
	}
	l.SetConsoleLevel(level)
	components.loggers[name] = l
	return l
}

// CloseComponents закрывает файлы всех логгеров компонентов
func CloseComponents() error {
	components.mu.Lock()
	defer components.mu.Unlock()

	var lastErr error
	for name, l := range components.loggers {
		if err := l.Close(); err != nil {
			lastErr = fmt.Errorf("закрытие логгера %s: %w", name, err)
		}
	}
	components.loggers = make(map[string]*Logger)
	return lastErr
}
