package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionRoundTrip(t *testing.T) {
	cases := []Position{
		{0, 0, 0},
		{3200, 3200, 0},
		{16383, 16383, 3},
		{1, 16383, 2},
		{16383, 0, 1},
	}
	for _, p := range cases {
		assert.Equal(t, p, Unpack(p.Pack()), "позиция %v", p)
	}

	// Сетка по всем этажам
	for z := 0; z < 4; z++ {
		for x := 0; x < 16384; x += 1021 {
			for y := 0; y < 16384; y += 1021 {
				p := Position{X: x, Y: y, Z: z}
				assert.Equal(t, p, Unpack(p.Pack()))
			}
		}
	}
}

func TestPackLayout(t *testing.T) {
	p := Position{X: 1, Y: 2, Z: 3}
	assert.Equal(t, int32(3<<28|1<<14|2), p.Pack())
}

func TestUnpackSentinel(t *testing.T) {
	assert.Equal(t, Position{-1, -1, -1}, Unpack(-1))
	assert.Equal(t, "(-1,-1,-1)", Unpack(NoPosition).String())
}

func TestRegionCoords(t *testing.T) {
	tile := Vec2{X: 3222, Y: 3218}
	region := tile.ToRegionCoords()
	assert.Equal(t, Vec2{X: 50, Y: 50}, region)
	assert.Equal(t, 12850, region.RegionID())
	assert.Equal(t, region, RegionCoordsFromID(12850))
	assert.Equal(t, Vec2{X: 22, Y: 18}, tile.LocalInRegion())
}
