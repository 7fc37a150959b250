package vec

// RegionShift размер региона в тайлах как степень двойки (64 тайла)
const RegionShift = 6

// Vec2 представляет 2D координаты (тайлы мира или координаты региона)
type Vec2 struct {
	X, Y int
}

// ToRegionCoords преобразует координаты тайла в координаты региона
func (v Vec2) ToRegionCoords() Vec2 {
	return Vec2{X: v.X >> RegionShift, Y: v.Y >> RegionShift} // Деление на 64
}

// LocalInRegion возвращает локальные координаты внутри региона
func (v Vec2) LocalInRegion() Vec2 {
	return Vec2{X: v.X & 0x3F, Y: v.Y & 0x3F} // Модуль 64
}

// RegionID составляет идентификатор региона из координат региона
func (v Vec2) RegionID() int {
	return (v.X << 8) | v.Y
}

// RegionCoordsFromID разбирает идентификатор региона
func RegionCoordsFromID(id int) Vec2 {
	return Vec2{X: (id >> 8) & 0xFF, Y: id & 0xFF}
}
