// Package color переводит квантованные цвета HSL кэша в RGB.
//
// Упакованный 16-битный цвет: оттенок 6 бит, насыщенность 3 бита, яркость 7 бит.
// Полный 24-битный цвет: по 8 бит на каждую компоненту.
package color

import (
	"fmt"
	"math"
)

// Brightness показатель степени гамма-коррекции. Чем меньше значение, тем светлее картинка.
type Brightness float64

const (
	BrightnessMax  Brightness = 0.6
	BrightnessHigh Brightness = 0.7
	BrightnessLow  Brightness = 0.8
	BrightnessMin  Brightness = 0.9
)

// PaletteSize количество упакованных 16-битных цветов
const PaletteSize = 1 << 16

// ParseBrightness разбирает имя яркости из конфигурации
func ParseBrightness(name string) (Brightness, error) {
	switch name {
	case "max":
		return BrightnessMax, nil
	case "high":
		return BrightnessHigh, nil
	case "low":
		return BrightnessLow, nil
	case "min":
		return BrightnessMin, nil
	default:
		return 0, fmt.Errorf("unknown brightness %q", name)
	}
}

// PackHSL упаковывает 16-битный цвет
func PackHSL(hue, saturation, luminance int) uint16 {
	return uint16((hue&63)<<10 | (saturation&7)<<7 | luminance&127)
}

func UnpackHue(hsl uint16) int        { return int(hsl>>10) & 63 }
func UnpackSaturation(hsl uint16) int { return int(hsl>>7) & 7 }
func UnpackLuminance(hsl uint16) int  { return int(hsl) & 127 }

// PackFullHSL упаковывает 24-битный цвет
func PackFullHSL(hue, saturation, luminance int) int {
	return (hue&255)<<16 | (saturation&255)<<8 | luminance&255
}

// HSLToRGB переводит 16-битный цвет в RGB с гамма-коррекцией.
// Половина шага квантования добавляется к оттенку и насыщенности.
func HSLToRGB(hsl uint16, brightness Brightness) int {
	hue := float64(UnpackHue(hsl))/64 + 0.0078125
	saturation := float64(UnpackSaturation(hsl))/8 + 0.0625
	luminance := float64(UnpackLuminance(hsl)) / 128

	rgb := hslToRGB(hue, saturation, luminance)
	rgb = AdjustForBrightness(rgb, brightness)
	if rgb == 0 {
		rgb = 1
	}
	return rgb
}

// FullHSLToRGB переводит 24-битный цвет в RGB без гамма-коррекции
func FullHSLToRGB(hsl int) int {
	hue := float64(hsl>>16&255) / 256
	saturation := float64(hsl>>8&255) / 256
	luminance := float64(hsl&255) / 256

	rgb := hslToRGB(hue, saturation, luminance)
	if rgb == 0 {
		rgb = 1
	}
	return rgb
}

func hslToRGB(hue, saturation, luminance float64) int {
	chroma := (1 - math.Abs(2*luminance-1)) * saturation
	x := chroma * (1 - math.Abs(math.Mod(hue*6, 2)-1))
	lightness := luminance - chroma/2

	r, g, b := lightness, lightness, lightness
	switch int(hue * 6) {
	case 0:
		r += chroma
		g += x
	case 1:
		g += chroma
		r += x
	case 2:
		g += chroma
		b += x
	case 3:
		b += chroma
		g += x
	case 4:
		b += chroma
		r += x
	default:
		r += chroma
		b += x
	}

	return packRGB(r, g, b)
}

// AdjustForBrightness возводит каждый канал (как долю от 256) в степень brightness
func AdjustForBrightness(rgb int, brightness Brightness) int {
	r := math.Pow(float64(rgb>>16&255)/256, float64(brightness))
	g := math.Pow(float64(rgb>>8&255)/256, float64(brightness))
	b := math.Pow(float64(rgb&255)/256, float64(brightness))
	return packRGB(r, g, b)
}

func packRGB(r, g, b float64) int {
	return channel(r)<<16 | channel(g)<<8 | channel(b)
}

// channel переводит долю в байт канала, значения вне [0,255] обрезаются
func channel(v float64) int {
	c := int(v * 256)
	if c > 255 {
		return 255
	}
	if c < 0 {
		return 0
	}
	return c
}

// Palette таблица RGB для всех 16-битных цветов
type Palette [PaletteSize]int32

// CreatePalette строит таблицу сразу для всех 65536 значений
func CreatePalette(brightness Brightness) *Palette {
	p := new(Palette)
	for i := 0; i < PaletteSize; i++ {
		p[i] = int32(HSLToRGB(uint16(i), brightness))
	}
	return p
}

// RGB возвращает цвет из таблицы
func (p *Palette) RGB(hsl uint16) int {
	return int(p[hsl])
}
