package world

import (
	"testing"

	"github.com/annel0/mapcache/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegion_Coordinates(t *testing.T) {
	r := NewRegion(12850)
	assert.Equal(t, 50, r.RegionX())
	assert.Equal(t, 50, r.RegionY())
	assert.Equal(t, 3200, r.BaseX())
	assert.Equal(t, 3200, r.BaseY())

	assert.Equal(t, 12850, NewRegionAt(50, 50).ID())
}

func TestRegion_EndToEnd(t *testing.T) {
	terrain, err := DecodeTerrain(flatTerrain(1), FormatCurrent)
	require.NoError(t, err)
	locs, err := DecodeLocations(singleLocation)
	require.NoError(t, err)

	r := NewRegionAt(50, 50)
	r.LoadTerrain(terrain)
	r.LoadLocations(locs)

	assert.Equal(t, 0, r.TileHeight(0, 5, 5))
	assert.Equal(t, 0, r.TileHeight(3, 63, 63), "высота 1 считается нулевой на всех этажах")

	require.Len(t, r.Locations(), 1)
	loc := r.Locations()[0]
	assert.Equal(t, 10, loc.ID)
	assert.Equal(t, 1, loc.Orientation)
	assert.Equal(t, vec.Position{X: r.BaseX() + 5, Y: r.BaseY() + 5, Z: 0}, loc.Position)
}

func TestRegion_HeightCascade(t *testing.T) {
	terrain := &Terrain{}
	terrain.Tile(0, 0, 0).HasHeight = true
	terrain.Tile(0, 0, 0).Height = 1

	terrain.Tile(0, 1, 0).HasHeight = true
	terrain.Tile(0, 1, 0).Height = 3
	terrain.Tile(1, 1, 0).HasHeight = true
	terrain.Tile(1, 1, 0).Height = 2

	r := NewRegion(0)
	r.LoadTerrain(terrain)

	assert.Equal(t, 0, r.TileHeight(0, 0, 0))
	assert.Equal(t, -240, r.TileHeight(1, 0, 0))
	assert.Equal(t, -480, r.TileHeight(2, 0, 0))
	assert.Equal(t, -720, r.TileHeight(3, 0, 0))

	assert.Equal(t, -24, r.TileHeight(0, 1, 0))
	assert.Equal(t, -24-16, r.TileHeight(1, 1, 0))
	assert.Equal(t, -24-16-240, r.TileHeight(2, 1, 0))
}

func TestRegion_NoiseHeight(t *testing.T) {
	r := NewRegionAt(50, 50)
	r.LoadTerrain(&Terrain{})

	want := -32 * HeightStep
	assert.Equal(t, want, r.TileHeight(0, 7, 9))
	assert.Equal(t, -29*HeightStep, r.TileHeight(0, 0, 0))
	assert.Equal(t, -40*HeightStep, r.TileHeight(0, 10, 30))
	assert.Equal(t, want-FloorGap, r.TileHeight(1, 7, 9))
}

func TestRegion_TileAttributes(t *testing.T) {
	terrain := &Terrain{}
	*terrain.Tile(2, 10, 20) = Tile{
		OverlayID:       0xFFFF,
		OverlayPath:     4,
		OverlayRotation: 2,
		Settings:        16,
		UnderlayID:      0x8005,
	}

	r := NewRegion(0)
	r.LoadTerrain(terrain)

	assert.Equal(t, 0x7FFF, r.OverlayID(2, 10, 20), "старший бит id скрыт")
	assert.Equal(t, 4, r.OverlayPath(2, 10, 20))
	assert.Equal(t, 2, r.OverlayRotation(2, 10, 20))
	assert.Equal(t, 16, r.TileSettings(2, 10, 20))
	assert.Equal(t, 5, r.UnderlayID(2, 10, 20))
}

func TestWorld_Index(t *testing.T) {
	w := NewWorld()
	assert.Equal(t, Bounds{}, w.CalculateBounds())

	a := NewRegionAt(50, 50)
	b := NewRegionAt(20, 60)
	c := NewRegionAt(40, 10)
	w.Add(a)
	w.Add(b)
	w.Add(c)
	w.recordFailure(NewRegionAt(1, 1).ID(), assert.AnError)

	bounds := w.CalculateBounds()
	assert.Same(t, b, bounds.LowestX)
	assert.Same(t, a, bounds.HighestX)
	assert.Same(t, c, bounds.LowestY)
	assert.Same(t, b, bounds.HighestY)
	assert.Equal(t, bounds, w.Bounds())

	assert.Same(t, a, w.RegionAt(3222, 3218))
	assert.Same(t, a, w.RegionByCoords(50, 50))
	assert.Nil(t, w.RegionAt(-1, 5))
	assert.Nil(t, w.RegionByCoords(300, 1))

	regions := w.Regions()
	require.Len(t, regions, 3)
	assert.Same(t, b, regions[0])
	assert.Same(t, c, regions[1])
	assert.Same(t, a, regions[2])

	assert.Equal(t, StatusLoaded, w.Status(a.ID()))
	assert.Equal(t, StatusMalformed, w.Status(NewRegionAt(1, 1).ID()))
	assert.ErrorIs(t, w.Failure(NewRegionAt(1, 1).ID()), assert.AnError)
	assert.Equal(t, StatusMissing, w.Status(NewRegionAt(2, 2).ID()))
	assert.Equal(t, "malformed", StatusMalformed.String())
}
