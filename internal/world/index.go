package world

import (
	"sort"
	"sync"

	"github.com/annel0/mapcache/internal/vec"
)

// RegionStatus состояние идентификатора региона после сканирования
type RegionStatus int

const (
	// StatusMissing архива ландшафта нет
	StatusMissing RegionStatus = iota
	// StatusLoaded регион в индексе
	StatusLoaded
	// StatusMalformed архив есть, но не разбирается
	StatusMalformed
)

func (s RegionStatus) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusMalformed:
		return "malformed"
	default:
		return "missing"
	}
}

// Bounds регионы с крайними базовыми координатами
type Bounds struct {
	LowestX  *Region
	HighestX *Region
	LowestY  *Region
	HighestY *Region
}

// World индекс загруженных регионов.
// Добавление безопасно из нескольких горутин; CalculateBounds вызывается после их завершения.
type World struct {
	mu       sync.RWMutex
	regions  map[int]*Region
	failures map[int]error
	bounds   Bounds
}

// NewWorld создаёт пустой индекс
func NewWorld() *World {
	return &World{
		regions:  make(map[int]*Region),
		failures: make(map[int]error),
	}
}

// Add добавляет регион, заменяя прежний с тем же id
func (w *World) Add(r *Region) {
	w.mu.Lock()
	w.regions[r.ID()] = r
	delete(w.failures, r.ID())
	w.mu.Unlock()
}

func (w *World) recordFailure(id int, err error) {
	w.mu.Lock()
	w.failures[id] = err
	w.mu.Unlock()
}

// CalculateBounds пересчитывает крайние регионы полным проходом по индексу
func (w *World) CalculateBounds() Bounds {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b Bounds
	for _, r := range w.regions {
		if b.LowestX == nil || r.BaseX() < b.LowestX.BaseX() {
			b.LowestX = r
		}
		if b.HighestX == nil || r.BaseX() > b.HighestX.BaseX() {
			b.HighestX = r
		}
		if b.LowestY == nil || r.BaseY() < b.LowestY.BaseY() {
			b.LowestY = r
		}
		if b.HighestY == nil || r.BaseY() > b.HighestY.BaseY() {
			b.HighestY = r
		}
	}
	w.bounds = b
	return b
}

// Bounds результат последнего CalculateBounds
func (w *World) Bounds() Bounds {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.bounds
}

// Region регион по идентификатору или nil
func (w *World) Region(id int) *Region {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.regions[id]
}

// RegionAt регион, содержащий тайл мира
func (w *World) RegionAt(worldX, worldY int) *Region {
	if worldX < 0 || worldY < 0 {
		return nil
	}
	return w.RegionByCoords(worldX>>vec.RegionShift, worldY>>vec.RegionShift)
}

// RegionByCoords регион по координатам региона
func (w *World) RegionByCoords(regionX, regionY int) *Region {
	if regionX < 0 || regionX > 0xFF || regionY < 0 || regionY > 0xFF {
		return nil
	}
	return w.Region(vec.Vec2{X: regionX, Y: regionY}.RegionID())
}

// Regions все регионы по возрастанию id
func (w *World) Regions() []*Region {
	w.mu.RLock()
	out := make([]*Region, 0, len(w.regions))
	for _, r := range w.regions {
		out = append(out, r)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len количество регионов в индексе
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.regions)
}

// Status отличает отсутствующий регион от повреждённого
func (w *World) Status(id int) RegionStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if _, ok := w.regions[id]; ok {
		return StatusLoaded
	}
	if _, ok := w.failures[id]; ok {
		return StatusMalformed
	}
	return StatusMissing
}

// Failure ошибка разбора региона или nil
func (w *World) Failure(id int) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.failures[id]
}

// Failures количество повреждённых регионов
func (w *World) Failures() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.failures)
}
