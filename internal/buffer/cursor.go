// Package buffer содержит последовательный big-endian декодер над неизменяемым срезом байт.
// Все "smart"-форматы кэша (переменная ширина 1/2 или 2/4 байта) читаются отсюда.
package buffer

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrOutOfBounds возвращается при чтении за пределами буфера
	ErrOutOfBounds = errors.New("buffer: read out of bounds")
	// ErrBadString возвращается, если строка v2 начинается не с нулевого байта
	ErrBadString = errors.New("buffer: bad string header")
)

// Cursor читает данные последовательно, начиная с позиции 0
type Cursor struct {
	data   []byte
	cursor int
}

// New создаёт курсор над data. Срез не копируется и не изменяется.
func New(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Len возвращает полную длину буфера
func (c *Cursor) Len() int { return len(c.data) }

// Position возвращает текущую позицию чтения
func (c *Cursor) Position() int { return c.cursor }

// Remaining возвращает количество непрочитанных байт
func (c *Cursor) Remaining() int { return len(c.data) - c.cursor }

// Seek устанавливает абсолютную позицию
func (c *Cursor) Seek(offset int) error {
	if offset < 0 || offset > len(c.data) {
		return fmt.Errorf("%w: seek %d of %d", ErrOutOfBounds, offset, len(c.data))
	}
	c.cursor = offset
	return nil
}

// Skip пропускает n байт
func (c *Cursor) Skip(n int) error {
	if _, err := c.take(n); err != nil {
		return err
	}
	return nil
}

// take возвращает следующие n байт и сдвигает позицию
func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || c.cursor+n > len(c.data) {
		return nil, fmt.Errorf("%w: need %d at %d of %d", ErrOutOfBounds, n, c.cursor, len(c.data))
	}
	b := c.data[c.cursor : c.cursor+n]
	c.cursor += n
	return b, nil
}

// Peek возвращает следующий байт без сдвига позиции
func (c *Cursor) Peek() (byte, error) {
	if c.cursor >= len(c.data) {
		return 0, fmt.Errorf("%w: peek at %d of %d", ErrOutOfBounds, c.cursor, len(c.data))
	}
	return c.data[c.cursor], nil
}

func (c *Cursor) ReadU8() (int, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return int(b[0]), nil
}

func (c *Cursor) ReadI8() (int, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return int(int8(b[0])), nil
}

func (c *Cursor) ReadU16() (int, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return int(b[0])<<8 | int(b[1]), nil
}

func (c *Cursor) ReadI16() (int, error) {
	v, err := c.ReadU16()
	if err != nil {
		return 0, err
	}
	return int(int16(v)), nil
}

// Read24 читает беззнаковое 24-битное значение
func (c *Cursor) Read24() (int, error) {
	b, err := c.take(3)
	if err != nil {
		return 0, err
	}
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2]), nil
}

func (c *Cursor) ReadI32() (int32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), nil
}

func (c *Cursor) ReadI64() (int64, error) {
	hi, err := c.ReadI32()
	if err != nil {
		return 0, err
	}
	lo, err := c.ReadI32()
	if err != nil {
		return 0, err
	}
	return int64(hi)<<32 | int64(uint32(lo)), nil
}

// ReadBytes возвращает копию следующих n байт
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadShortSmart читает знаковое значение в диапазоне [-64, 16383]:
// один байт со смещением 64 либо два байта со смещением 0xC000.
func (c *Cursor) ReadShortSmart() (int, error) {
	peek, err := c.Peek()
	if err != nil {
		return 0, err
	}
	if peek < 128 {
		v, err := c.ReadU8()
		return v - 64, err
	}
	v, err := c.ReadU16()
	return v - 0xC000, err
}

// ReadUnsignedShortSmart читает значение в диапазоне [0, 32767]
func (c *Cursor) ReadUnsignedShortSmart() (int, error) {
	peek, err := c.Peek()
	if err != nil {
		return 0, err
	}
	if peek < 128 {
		return c.ReadU8()
	}
	v, err := c.ReadU16()
	return v - 0x8000, err
}

// ReadUnsignedShortSmartMinusOne как ReadUnsignedShortSmart, но 0 кодирует -1
func (c *Cursor) ReadUnsignedShortSmartMinusOne() (int, error) {
	peek, err := c.Peek()
	if err != nil {
		return 0, err
	}
	if peek < 128 {
		v, err := c.ReadU8()
		return v - 1, err
	}
	v, err := c.ReadU16()
	return v - 0x8001, err
}

// ReadUnsignedIntSmartShortCompat суммирует куски ReadUnsignedShortSmart.
// Кусок 32767 означает продолжение и тоже входит в сумму.
func (c *Cursor) ReadUnsignedIntSmartShortCompat() (int, error) {
	total := 0
	for {
		chunk, err := c.ReadUnsignedShortSmart()
		if err != nil {
			return 0, err
		}
		total += chunk
		if chunk != 32767 {
			return total, nil
		}
	}
}

// ReadBigSmart читает u16, если старший бит первого байта снят, иначе i32 без знакового бита
func (c *Cursor) ReadBigSmart() (int, error) {
	peek, err := c.Peek()
	if err != nil {
		return 0, err
	}
	if int8(peek) >= 0 {
		return c.ReadU16()
	}
	v, err := c.ReadI32()
	return int(v & 0x7FFFFFFF), err
}

// ReadBigSmart2 как ReadBigSmart, но короткое значение 32767 означает отсутствие (-1)
func (c *Cursor) ReadBigSmart2() (int, error) {
	peek, err := c.Peek()
	if err != nil {
		return 0, err
	}
	if int8(peek) >= 0 {
		v, err := c.ReadU16()
		if err != nil {
			return 0, err
		}
		if v == 32767 {
			return -1, nil
		}
		return v, nil
	}
	v, err := c.ReadI32()
	return int(v & 0x7FFFFFFF), err
}

// ReadString читает строку до нулевого терминатора
func (c *Cursor) ReadString() (string, error) {
	start := c.cursor
	end := start
	for end < len(c.data) && c.data[end] != 0 {
		end++
	}
	if end >= len(c.data) {
		return "", fmt.Errorf("%w: unterminated string at %d", ErrOutOfBounds, start)
	}
	c.cursor = end + 1

	var sb strings.Builder
	sb.Grow(end - start)
	for _, b := range c.data[start:end] {
		sb.WriteRune(decodeCP1252(b))
	}
	return sb.String(), nil
}

// ReadStringV2 требует ведущий нулевой байт перед строкой
func (c *Cursor) ReadStringV2() (string, error) {
	lead, err := c.ReadU8()
	if err != nil {
		return "", err
	}
	if lead != 0 {
		return "", fmt.Errorf("%w: leading byte %d", ErrBadString, lead)
	}
	return c.ReadString()
}

// ReadNullableString возвращает ok=false, если строка пустая; терминатор при этом поглощается
func (c *Cursor) ReadNullableString() (string, bool, error) {
	peek, err := c.Peek()
	if err != nil {
		return "", false, err
	}
	if peek == 0 {
		c.cursor++
		return "", false, nil
	}
	s, err := c.ReadString()
	return s, err == nil, err
}

// ReadVarInt читает 7-битные группы, старшая группа первой
func (c *Cursor) ReadVarInt() (int, error) {
	b, err := c.ReadI8()
	if err != nil {
		return 0, err
	}
	value := 0
	for b < 0 {
		value = (value | b&127) << 7
		if b, err = c.ReadI8(); err != nil {
			return 0, err
		}
	}
	return value | b, nil
}

// ReadVarInt2 читает 7-битные группы, младшая группа первой
func (c *Cursor) ReadVarInt2() (int, error) {
	value := 0
	shift := 0
	for {
		b, err := c.ReadU8()
		if err != nil {
			return 0, err
		}
		value |= (b & 127) << shift
		shift += 7
		if b <= 127 {
			return value, nil
		}
	}
}

// decodeCP1252 декодирует байт как Windows-1252. Пять неопределённых байт 0x81, 0x8D,
// 0x8F, 0x90 и 0x9D charmap оставляет управляющими символами C1, клиент пишет вместо них '?'.
func decodeCP1252(b byte) rune {
	r := charmap.Windows1252.DecodeByte(b)
	if r >= 0x80 && r < 0xA0 {
		return '?'
	}
	return r
}
