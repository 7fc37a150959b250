package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/mapcache/internal/cache"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации загрузчика
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Keys    KeysConfig    `yaml:"keys"`
	World   WorldConfig   `yaml:"world"`
	Colors  ColorsConfig  `yaml:"colors"`
	Redis   RedisConfig   `yaml:"redis"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Logging LoggingConfig `yaml:"logging"`
}

// CacheConfig откуда читаются архивы и сколько памяти отдано под кеш
type CacheConfig struct {
	// Backend "file" или "badger"
	Backend     string        `yaml:"backend"`
	Root        string        `yaml:"root"`
	BadgerDir   string        `yaml:"badger_dir"`
	MemoryBytes int64         `yaml:"memory_bytes"`
	PayloadTTL  time.Duration `yaml:"payload_ttl"`
}

type KeysConfig struct {
	Path string `yaml:"path"`
}

type WorldConfig struct {
	Workers int `yaml:"workers"`
	// Format "current" или "legacy"
	Format string `yaml:"format"`
}

type ColorsConfig struct {
	// Brightness одно из max, high, low, min
	Brightness string `yaml:"brightness"`
}

// RedisConfig общий кеш в Redis вместо кеша в памяти
type RedisConfig struct {
	Enabled           bool `yaml:"enabled"`
	cache.RedisConfig `yaml:",inline"`
}

// NATSConfig рассылка инвалидации между загрузчиками
type NATSConfig struct {
	Enabled                 bool `yaml:"enabled"`
	cache.InvalidatorConfig `yaml:",inline"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig экспорт трасс OpenTelemetry по OTLP HTTP
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default конфигурация без файла
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Backend:     "file",
			Root:        "cache",
			MemoryBytes: 256 << 20,
			PayloadTTL:  30 * time.Minute,
		},
		Keys: KeysConfig{
			Path: "xteas.json",
		},
		World: WorldConfig{
			Format: "current",
		},
		Colors: ColorsConfig{
			Brightness: "high",
		},
		Redis: RedisConfig{
			RedisConfig: cache.RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "mapcache:",
			},
		},
		NATS: NATSConfig{
			InvalidatorConfig: cache.InvalidatorConfig{
				URL: "nats://localhost:4222",
			},
		},
		Tracing: TracingConfig{
			ServiceName: "mapcache-worldload",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// GetWorkers возвращает число воркеров с приоритетом: config -> env -> 0 (по числу CPU)
func (w *WorldConfig) GetWorkers() int {
	return getIntWithEnvFallback(w.Workers, "MAPCACHE_WORKERS", 0)
}

// GetAddr возвращает адрес /metrics с приоритетом: config -> env -> default
func (m *MetricsConfig) GetAddr() string {
	if m.Addr != "" {
		return m.Addr
	}
	if env := os.Getenv("MAPCACHE_METRICS_ADDR"); env != "" {
		return env
	}
	return ":2112"
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}

// Load читает YAML файл поверх Default().
// Если path == "", берёт путь из ENV MAPCACHE_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("MAPCACHE_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	return cfg, nil
}
