package world

import "math"

// cosine таблица 65536·cos(i·2π/2048) для интерполяции шума
var cosine [2048]int32

func init() {
	for i := range cosine {
		cosine[i] = int32(65536.0 * math.Cos(float64(i)*0.0030679615))
	}
}

// NoiseHeight возвращает высоту тайла без явной высоты, в шагах по 8 единиц.
// Результат зависит только от мировых координат и лежит в [10, 60].
func NoiseHeight(x, y int) int {
	x32, y32 := int32(x), int32(y)
	n := interpolatedNoise(x32+45365, y32+91923, 4) - 128 +
		((interpolatedNoise(x32+10294, y32+37821, 2) - 128) >> 1) +
		((interpolatedNoise(x32, y32, 1) - 128) >> 2)

	h := int(float64(n)*0.3) + 35
	if h < 10 {
		return 10
	}
	if h > 60 {
		return 60
	}
	return h
}

func interpolatedNoise(x, y, frequency int32) int32 {
	intX := x / frequency
	fracX := x & (frequency - 1)
	intY := y / frequency
	fracY := y & (frequency - 1)

	v1 := smoothedNoise(intX, intY)
	v2 := smoothedNoise(intX+1, intY)
	v3 := smoothedNoise(intX, intY+1)
	v4 := smoothedNoise(intX+1, intY+1)

	i1 := interpolate(v1, v2, fracX, frequency)
	i2 := interpolate(v3, v4, fracX, frequency)
	return interpolate(i1, i2, fracY, frequency)
}

func interpolate(a, b, x, frequency int32) int32 {
	f := (65536 - cosine[x*1024/frequency]) >> 1
	return (f*b)>>16 + (a*(65536-f))>>16
}

func smoothedNoise(x, y int32) int32 {
	corners := noise(x-1, y-1) + noise(x+1, y-1) + noise(x-1, y+1) + noise(x+1, y+1)
	sides := noise(x-1, y) + noise(x+1, y) + noise(x, y-1) + noise(x, y+1)
	center := noise(x, y)
	return center/4 + sides/8 + corners/16
}

// noise целочисленный хеш координат в [0, 255]; переполнение int32 ожидаемо
func noise(x, y int32) int32 {
	n := x + y*57
	n ^= n << 13
	return ((n*(n*n*15731+789221) + 1376312589) & 0x7FFFFFFF) >> 19 & 255
}
