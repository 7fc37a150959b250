package world

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/mapcache/internal/logging"
	"github.com/annel0/mapcache/internal/storage"
	"github.com/annel0/mapcache/internal/vec"
	"github.com/annel0/mapcache/internal/xtea"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RegionIDLimit верхняя граница идентификаторов регионов при сканировании
const RegionIDLimit = 1 << 15

var tracer = otel.Tracer("github.com/annel0/mapcache/internal/world")

// ErrRegionNotFound у региона нет архива ландшафта
var ErrRegionNotFound = errors.New("world: region not found")

// PayloadSource отдаёт именованные архивы. Отсутствие архива сообщается через storage.ErrNotFound.
type PayloadSource interface {
	FetchPayload(ctx context.Context, table int, label string, key xtea.Key) ([]byte, error)
}

// Loader собирает индекс мира из архивов ландшафта и расположений
type Loader struct {
	source  PayloadSource
	keys    xtea.KeyProvider
	format  Format
	workers int
	metrics *Metrics
}

// LoaderOption настройка Loader
type LoaderOption func(*Loader)

// WithWorkers задаёт число воркеров (<= 0 означает runtime.NumCPU())
func WithWorkers(n int) LoaderOption {
	return func(l *Loader) { l.workers = n }
}

// WithFormat задаёт формат записей ландшафта
func WithFormat(f Format) LoaderOption {
	return func(l *Loader) { l.format = f }
}

// WithMetrics включает prometheus-метрики сканирования
func WithMetrics(m *Metrics) LoaderOption {
	return func(l *Loader) { l.metrics = m }
}

// NewLoader создаёт загрузчик. keys читается во время сканирования, поэтому
// при возможной перезагрузке ключей стоит передавать xtea.Snapshot.
func NewLoader(source PayloadSource, keys xtea.KeyProvider, opts ...LoaderOption) *Loader {
	l := &Loader{
		source: source,
		keys:   keys,
		format: FormatCurrent,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.workers <= 0 {
		l.workers = runtime.NumCPU()
	}
	return l
}

// Load сканирует все идентификаторы регионов.
// Ошибка разбора одного региона не прерывает сканирование и доступна через World.Failure.
// При отмене ctx возвращается частично заполненный мир и ctx.Err().
func (l *Loader) Load(ctx context.Context) (*World, error) {
	scanID := uuid.NewString()
	start := time.Now()
	w := NewWorld()

	ctx, span := tracer.Start(ctx, "world.Load")
	defer span.End()
	span.SetAttributes(attribute.String("scan.id", scanID), attribute.Int("workers", l.workers))

	logging.Info("🗺️ Сканирование мира %s: %d воркеров", scanID, l.workers)

	ids := make(chan int, l.workers*2)
	var wg sync.WaitGroup
	var withLocations int64

	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				if ctx.Err() != nil {
					continue
				}
				if l.loadInto(ctx, w, id) {
					atomic.AddInt64(&withLocations, 1)
				}
			}
		}()
	}

feed:
	for id := 0; id < RegionIDLimit; id++ {
		select {
		case <-ctx.Done():
			break feed
		case ids <- id:
		}
	}
	close(ids)
	wg.Wait()

	w.CalculateBounds()
	l.metrics.scanned(start, w.Len())

	logging.Info("🗺️ Сканирование %s завершено за %v: регионов %d (с объектами %d), повреждено %d",
		scanID, time.Since(start), w.Len(), atomic.LoadInt64(&withLocations), w.Failures())

	span.SetAttributes(
		attribute.Int("regions.loaded", w.Len()),
		attribute.Int("regions.malformed", w.Failures()),
		attribute.Int64("regions.with_locations", atomic.LoadInt64(&withLocations)),
	)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return w, err
	}
	return w, nil
}

// loadInto загружает один регион в w и сообщает, были ли у него расположения
func (l *Loader) loadInto(ctx context.Context, w *World, id int) bool {
	r, err := l.LoadRegion(ctx, id)
	switch {
	case err == nil:
		w.Add(r)
		l.metrics.region(resultLoaded)
		if len(r.Locations()) > 0 {
			l.metrics.locations()
			return true
		}
		return false
	case errors.Is(err, ErrRegionNotFound):
		l.metrics.region(resultMissing)
	case ctx.Err() != nil:
	default:
		logging.Warn("Регион %d не загружен: %v", id, err)
		w.recordFailure(id, err)
		l.metrics.region(resultMalformed)
	}
	return false
}

// LoadRegion загружает один регион.
// ErrRegionNotFound означает отсутствие ландшафта; любая другая ошибка означает повреждённые данные.
// Расположения запрашиваются только если для региона есть ключ.
func (l *Loader) LoadRegion(ctx context.Context, id int) (*Region, error) {
	rc := vec.RegionCoordsFromID(id)

	terrainLabel := storage.TerrainLabel(rc.X, rc.Y)
	data, err := l.source.FetchPayload(ctx, storage.TableMaps, terrainLabel, xtea.Key{})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRegionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("region %d terrain: %w", id, err)
	}

	terrain, err := DecodeTerrain(data, l.format)
	if err != nil {
		logging.LogPayloadError(terrainLabel, err, data)
		return nil, fmt.Errorf("region %d terrain: %w", id, err)
	}

	region := NewRegion(id)
	region.LoadTerrain(terrain)

	key, ok := l.keys.Key(id)
	if !ok {
		return region, nil
	}

	locationsLabel := storage.LocationsLabel(rc.X, rc.Y)
	data, err = l.source.FetchPayload(ctx, storage.TableMaps, locationsLabel, key)
	if errors.Is(err, storage.ErrNotFound) {
		return region, nil
	}
	if err != nil {
		return nil, fmt.Errorf("region %d locations: %w", id, err)
	}

	locations, err := DecodeLocations(data)
	if err != nil {
		logging.LogPayloadError(locationsLabel, err, data)
		return nil, fmt.Errorf("region %d locations: %w", id, err)
	}
	region.LoadLocations(locations)

	return region, nil
}
