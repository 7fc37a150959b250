package world

import (
	"fmt"

	"github.com/annel0/mapcache/internal/buffer"
)

// Format раскладка записей тайлов в архиве ландшафта
type Format int

const (
	// FormatCurrent: опкоды и id покрытия занимают по 2 байта
	FormatCurrent Format = iota
	// FormatLegacy: опкоды и id покрытия занимают по 1 байту
	FormatLegacy
)

// ParseFormat разбирает имя формата из конфигурации
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", "current":
		return FormatCurrent, nil
	case "legacy":
		return FormatLegacy, nil
	default:
		return 0, fmt.Errorf("unknown terrain format %q", name)
	}
}

// Tile сырая запись тайла до вычисления высот
type Tile struct {
	HasHeight       bool
	Height          int
	OverlayID       uint16
	OverlayPath     uint8
	OverlayRotation uint8
	Settings        uint8
	UnderlayID      uint16
}

// Terrain плотная сетка записей [z][x][y] одного региона
type Terrain struct {
	tiles [TileCount]Tile
}

// Tile возвращает запись по локальным координатам
func (t *Terrain) Tile(z, x, y int) *Tile {
	return &t.tiles[index(z, x, y)]
}

// DecodeTerrain разбирает архив ландшафта m{x}_{y}
func DecodeTerrain(data []byte, format Format) (*Terrain, error) {
	c := buffer.New(data)
	t := &Terrain{}

	readOpcode := c.ReadU16
	if format == FormatLegacy {
		readOpcode = c.ReadU8
	}

	for z := 0; z < Layers; z++ {
		for x := 0; x < Size; x++ {
			for y := 0; y < Size; y++ {
				if err := decodeTile(c, readOpcode, format, &t.tiles[index(z, x, y)]); err != nil {
					return nil, fmt.Errorf("tile %d,%d,%d: %w", z, x, y, err)
				}
			}
		}
	}
	return t, nil
}

func decodeTile(c *buffer.Cursor, readOpcode func() (int, error), format Format, tile *Tile) error {
	for {
		op, err := readOpcode()
		if err != nil {
			return err
		}

		switch {
		case op == 0:
			return nil
		case op == 1:
			h, err := c.ReadU8()
			if err != nil {
				return err
			}
			tile.HasHeight = true
			tile.Height = h
			return nil
		case op <= 49:
			var id int
			if format == FormatLegacy {
				id, err = c.ReadU8()
			} else {
				id, err = c.ReadI16()
			}
			if err != nil {
				return err
			}
			tile.OverlayID = uint16(id)
			tile.OverlayPath = uint8((op - 2) / 4)
			tile.OverlayRotation = uint8((op - 2) & 3)
		case op <= 81:
			tile.Settings = uint8(op - 49)
		default:
			tile.UnderlayID = uint16(op - 81)
		}
	}
}
