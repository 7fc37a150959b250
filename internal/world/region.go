package world

import (
	"github.com/annel0/mapcache/internal/vec"
)

const (
	// Size сторона региона в тайлах
	Size = 64
	// Layers количество этажей
	Layers = 4
	// TileCount количество ячеек сетки региона
	TileCount = Layers * Size * Size

	// HeightStep единиц высоты на один шаг записи
	HeightStep = 8
	// FloorGap высота этажа без явной высоты
	FloorGap = 240
)

// index плоский индекс ячейки [z][x][y]
func index(z, x, y int) int {
	return (z*Size+x)*Size + y
}

// Region участок мира 64x64 тайла на 4 этажа
type Region struct {
	id    int
	baseX int
	baseY int

	heights          [TileCount]int32
	settings         [TileCount]uint8
	overlayIDs       [TileCount]uint16
	overlayPaths     [TileCount]uint8
	overlayRotations [TileCount]uint8
	underlayIDs      [TileCount]uint16

	locations []Location
}

// NewRegion создаёт пустой регион по идентификатору
func NewRegion(id int) *Region {
	return &Region{
		id:    id,
		baseX: ((id >> 8) & 0xFF) << vec.RegionShift,
		baseY: (id & 0xFF) << vec.RegionShift,
	}
}

// NewRegionAt создаёт пустой регион по координатам региона
func NewRegionAt(regionX, regionY int) *Region {
	return NewRegion(vec.Vec2{X: regionX, Y: regionY}.RegionID())
}

func (r *Region) ID() int      { return r.id }
func (r *Region) BaseX() int   { return r.baseX }
func (r *Region) BaseY() int   { return r.baseY }
func (r *Region) RegionX() int { return r.baseX >> vec.RegionShift }
func (r *Region) RegionY() int { return r.baseY >> vec.RegionShift }

// LoadTerrain переносит записи тайлов и вычисляет высоты.
// Этажи обходятся строго по возрастанию: высота этажа зависит от этажа ниже.
func (r *Region) LoadTerrain(t *Terrain) {
	for z := 0; z < Layers; z++ {
		for x := 0; x < Size; x++ {
			for y := 0; y < Size; y++ {
				i := index(z, x, y)
				tile := &t.tiles[i]

				r.heights[i] = int32(r.tileHeight(tile, z, x, y))
				r.settings[i] = tile.Settings
				r.overlayIDs[i] = tile.OverlayID
				r.overlayPaths[i] = tile.OverlayPath
				r.overlayRotations[i] = tile.OverlayRotation
				r.underlayIDs[i] = tile.UnderlayID
			}
		}
	}
}

func (r *Region) tileHeight(tile *Tile, z, x, y int) int {
	if !tile.HasHeight {
		if z == 0 {
			return -NoiseHeight(r.baseX+x+0xE3B7B, r.baseY+y+0x87CCE) * HeightStep
		}
		return int(r.heights[index(z-1, x, y)]) - FloorGap
	}

	h := tile.Height
	if h == 1 {
		h = 0
	}
	if z == 0 {
		return -h * HeightStep
	}
	return int(r.heights[index(z-1, x, y)]) - h*HeightStep
}

// LoadLocations переводит локальные позиции в мировые и добавляет объекты.
// Повторный вызов добавит дубликаты.
func (r *Region) LoadLocations(locations []Location) {
	for _, loc := range locations {
		loc.Position = loc.Position.Add(r.baseX, r.baseY)
		r.locations = append(r.locations, loc)
	}
}

// Locations возвращает объекты региона в мировых координатах
func (r *Region) Locations() []Location {
	return r.locations
}

// TileHeight итоговая высота ячейки
func (r *Region) TileHeight(z, x, y int) int {
	return int(r.heights[index(z, x, y)])
}

// TileSettings флаги ячейки
func (r *Region) TileSettings(z, x, y int) int {
	return int(r.settings[index(z, x, y)])
}

// OverlayID id покрытия; старший бит зарезервирован
func (r *Region) OverlayID(z, x, y int) int {
	return int(r.overlayIDs[index(z, x, y)] & 0x7FFF)
}

func (r *Region) OverlayPath(z, x, y int) int {
	return int(r.overlayPaths[index(z, x, y)])
}

func (r *Region) OverlayRotation(z, x, y int) int {
	return int(r.overlayRotations[index(z, x, y)])
}

// UnderlayID id подложки; старший бит зарезервирован
func (r *Region) UnderlayID(z, x, y int) int {
	return int(r.underlayIDs[index(z, x, y)] & 0x7FFF)
}
