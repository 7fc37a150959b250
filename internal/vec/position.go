package vec

import "fmt"

// NoPosition упакованное значение "позиции нет"
const NoPosition int32 = -1

// Position координата тайла: x, y в [0, 16383], z (этаж) в [0, 3]
type Position struct {
	X int
	Y int
	Z int
}

// Pack упаковывает позицию в 32 бита: (z<<28)|(x<<14)|y
func (p Position) Pack() int32 {
	return int32(p.Z<<28 | p.X<<14 | p.Y)
}

// Unpack разбирает упакованную позицию; -1 даёт (-1,-1,-1)
func Unpack(packed int32) Position {
	if packed == NoPosition {
		return Position{X: -1, Y: -1, Z: -1}
	}
	return Position{
		X: int(packed>>14) & 16383,
		Y: int(packed) & 16383,
		Z: int(packed>>28) & 3,
	}
}

// Add сдвигает позицию в плоскости, этаж не меняется
func (p Position) Add(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy, Z: p.Z}
}

// Tile возвращает плоские координаты позиции
func (p Position) Tile() Vec2 {
	return Vec2{X: p.X, Y: p.Y}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}
