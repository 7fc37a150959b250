package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/mapcache/internal/cache"
	"github.com/annel0/mapcache/internal/color"
	"github.com/annel0/mapcache/internal/config"
	"github.com/annel0/mapcache/internal/gamevals"
	"github.com/annel0/mapcache/internal/logging"
	"github.com/annel0/mapcache/internal/observability"
	"github.com/annel0/mapcache/internal/storage"
	"github.com/annel0/mapcache/internal/world"
	"github.com/annel0/mapcache/internal/xtea"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $MAPCACHE_CONFIG)")
	once := flag.Bool("once", false, "просканировать мир и завершиться")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.LogDir = cfg.Logging.Dir
	if err := logging.InitDefaultLogger("worldload"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	logging.SetDefaultConsoleLevel(logging.ParseLevel(cfg.Logging.Level))

	err = run(cfg, *once)
	_ = logging.CloseComponents()
	logging.CloseDefaultLogger()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// app связывает хранилище, ключи и индекс мира
type app struct {
	cfg         *config.Config
	keys        *xtea.Registry
	store       *storage.CachingStorage
	payloads    cache.PayloadCache
	invalidator *cache.NATSInvalidator
	metrics     *world.Metrics
	format      world.Format
	world       *world.World
}

func run(cfg *config.Config, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := observability.NewProcessStats()
	if err != nil {
		return err
	}

	if cfg.Tracing.Enabled {
		shutdownTracing, err := observability.InitTelemetry(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
			}
		}()
	}

	metricsServer := observability.NewMetricsServer(cfg.Metrics.GetAddr(), nil)
	metricsServer.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	format, err := world.ParseFormat(cfg.World.Format)
	if err != nil {
		return err
	}
	brightness, err := color.ParseBrightness(cfg.Colors.Brightness)
	if err != nil {
		return err
	}

	a := &app{
		cfg:     cfg,
		keys:    xtea.NewRegistry(),
		metrics: world.NewMetrics(nil),
		format:  format,
	}

	// Отсутствующий или повреждённый файл ключей не фатален: регионы загрузятся без объектов
	if err := a.keys.Load(cfg.Keys.Path); err != nil {
		logging.Warn("Ключи XTEA не загружены: %v", err)
	}
	logging.Info("🔑 Ключей XTEA: %d", a.keys.Len())

	if err := a.openStorage(ctx); err != nil {
		return err
	}
	defer a.store.Close()
	if a.invalidator != nil {
		defer a.invalidator.Close()
	}

	a.world, err = a.loader().Load(ctx)
	if err != nil {
		return fmt.Errorf("сканирование мира: %w", err)
	}
	reportWorld(a.world)
	a.reportCache()

	palette := color.CreatePalette(brightness)
	logging.Info("🎨 Палитра построена (яркость %s): HSL 0x%04x -> RGB 0x%06x",
		cfg.Colors.Brightness, 0x2A5F, palette.RGB(0x2A5F))

	names, err := gamevals.Load(ctx, a.store)
	if err != nil {
		logging.Warn("gamevals не загружены: %v", err)
	}
	for group, entries := range names {
		logging.Info("📚 gamevals %s: %d имён", gamevals.GroupName(group), len(entries))
	}

	if snap, err := stats.Snapshot(); err == nil {
		logging.Info("📊 %s", snap)
	}

	if once {
		return nil
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	logging.Info("✅ Мир загружен, SIGHUP перечитывает ключи, SIGINT завершает работу")
	for {
		select {
		case <-ctx.Done():
			logging.Info("👋 Завершение работы")
			return nil
		case <-hup:
			if err := a.reloadKeys(ctx); err != nil {
				logging.Error("Ошибка перезагрузки ключей: %v", err)
			}
		}
	}
}

// openStorage открывает хранилище архивов, кеш и, если включено, рассылку инвалидации
func (a *app) openStorage(ctx context.Context) error {
	var (
		inner storage.Storage
		err   error
	)
	switch a.cfg.Cache.Backend {
	case "badger":
		inner, err = storage.NewBadgerStore(a.cfg.Cache.BadgerDir)
	case "file", "":
		inner, err = storage.NewFileStore(a.cfg.Cache.Root)
	default:
		err = fmt.Errorf("неизвестный backend хранилища %q", a.cfg.Cache.Backend)
	}
	if err != nil {
		return err
	}

	if a.cfg.NATS.Enabled {
		a.invalidator, err = cache.NewNATSInvalidator(&a.cfg.NATS.InvalidatorConfig, "")
		if err != nil {
			inner.Close()
			return err
		}
	}

	var payloads cache.PayloadCache
	if a.cfg.Redis.Enabled {
		var invalidator cache.CacheInvalidator
		if a.invalidator != nil {
			invalidator = a.invalidator
		}
		payloads, err = cache.NewRedisCache(&a.cfg.Redis.RedisConfig, invalidator)
	} else {
		payloads, err = cache.NewMemoryCache(a.cfg.Cache.MemoryBytes)
	}
	if err != nil {
		inner.Close()
		return err
	}

	a.payloads = payloads
	a.store = storage.NewCachingStorage(inner, payloads, a.cfg.Cache.PayloadTTL)
	if err := cache.RegisterCollector(nil, payloads, a.invalidator); err != nil {
		logging.Warn("Метрики кеша не зарегистрированы: %v", err)
	}

	if a.invalidator != nil {
		if err := a.invalidator.SubscribeInvalidations(ctx, a.store.HandleInvalidation); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) loader() *world.Loader {
	return world.NewLoader(a.store, a.keys.Snapshot(),
		world.WithWorkers(a.cfg.World.GetWorkers()),
		world.WithFormat(a.format),
		world.WithMetrics(a.metrics),
	)
}

// reloadKeys перечитывает файл ключей и перезагружает регионы, чьи ключи изменились
func (a *app) reloadKeys(ctx context.Context) error {
	ctx, span := otel.Tracer("github.com/annel0/mapcache/cmd/worldload").Start(ctx, "keys.Reload",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	keysLog := logging.Component(logging.ComponentKeys, logging.ParseLevel(a.cfg.Logging.Level))

	before := a.keys.Snapshot()
	if err := a.keys.Load(a.cfg.Keys.Path); err != nil {
		return err
	}
	changed := xtea.Diff(before, a.keys.Snapshot())
	keysLog.Info("🔑 Ключи перечитаны: %d, изменено %d: %v", a.keys.Len(), len(changed), changed)
	span.SetAttributes(attribute.Int("keys.total", a.keys.Len()), attribute.Int("keys.changed", len(changed)))
	if len(changed) == 0 {
		return nil
	}

	keys, err := a.store.InvalidateRegions(ctx, changed)
	if err != nil {
		keysLog.Warn("Инвалидация кеша неполная: %v", err)
	}
	// RedisCache сам рассылает инвалидацию; кеш в памяти нет
	if a.invalidator != nil && !a.cfg.Redis.Enabled {
		for _, key := range keys {
			if err := a.invalidator.PublishInvalidation(ctx, key); err != nil {
				keysLog.Warn("Не удалось разослать инвалидацию %s: %v", key, err)
			}
		}
	}

	loader := a.loader()
	for _, id := range changed {
		region, err := loader.LoadRegion(ctx, id)
		if err != nil {
			keysLog.Warn("Регион %d не перезагружен: %v", id, err)
			continue
		}
		a.world.Add(region)
	}
	a.world.CalculateBounds()
	reportWorld(a.world)
	a.reportCache()
	return nil
}

func (a *app) reportCache() {
	m := a.payloads.GetMetrics()
	logging.Info("💾 Кеш архивов: запросов %d, попаданий %d (%.1f%%)",
		m.TotalRequests, m.CacheHits, m.HitRatio*100)
	if m.AvgLatencyMs > 0 {
		logging.Info("💾 Задержка кеша: средняя %.2f мс, максимальная %.2f мс", m.AvgLatencyMs, m.MaxLatencyMs)
	}
	if a.invalidator != nil {
		inv := a.invalidator.GetMetrics()
		logging.Info("📡 Инвалидация: отправлено %v, получено %v, ошибок %v",
			inv["published_count"], inv["received_count"], inv["errors_count"])
	}
}

func reportWorld(w *world.World) {
	b := w.Bounds()
	if b.LowestX == nil {
		logging.Warn("🗺️ Мир пуст")
		return
	}
	logging.Info("🗺️ Регионов: %d, повреждено: %d", w.Len(), w.Failures())
	logging.Info("🗺️ Границы: x [%d, %d], y [%d, %d]",
		b.LowestX.BaseX(), b.HighestX.BaseX()+world.Size-1,
		b.LowestY.BaseY(), b.HighestY.BaseY()+world.Size-1)
}
