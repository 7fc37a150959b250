package world

import (
	"github.com/annel0/mapcache/internal/buffer"
	"github.com/annel0/mapcache/internal/vec"
)

// Location размещённый в регионе объект
type Location struct {
	ID          int
	Type        int
	Orientation int
	Position    vec.Position
}

// DecodeLocations разбирает архив расположений l{x}_{y}. Позиции локальные для региона.
func DecodeLocations(data []byte) ([]Location, error) {
	c := buffer.New(data)
	var locations []Location

	id := -1
	for {
		delta, err := c.ReadUnsignedIntSmartShortCompat()
		if err != nil {
			return nil, err
		}
		if delta == 0 {
			return locations, nil
		}
		id += delta

		position := 0
		for {
			offset, err := c.ReadUnsignedShortSmart()
			if err != nil {
				return nil, err
			}
			if offset == 0 {
				break
			}
			position += offset - 1

			attributes, err := c.ReadU8()
			if err != nil {
				return nil, err
			}

			locations = append(locations, Location{
				ID:          id,
				Type:        attributes >> 2,
				Orientation: attributes & 3,
				Position: vec.Position{
					X: position >> 6 & 0x3F,
					Y: position & 0x3F,
					Z: position >> 12 & 0x3,
				},
			})
		}
	}
}
