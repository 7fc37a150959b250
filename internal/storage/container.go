package storage

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/annel0/mapcache/internal/buffer"
	"github.com/annel0/mapcache/internal/xtea"
	"github.com/klauspost/compress/gzip"
	xteacipher "golang.org/x/crypto/xtea"
)

// Типы сжатия контейнера
const (
	CompressionNone  = 0
	CompressionBzip2 = 1
	CompressionGzip  = 2
)

// ErrUnknownCompression неизвестный тип сжатия контейнера
var ErrUnknownCompression = errors.New("storage: unknown compression")

// bzip2Header кэш хранит bzip2 без заголовка потока
var bzip2Header = []byte("BZh1")

// DecodeContainer разбирает контейнер: [сжатие u8][длина i32]([распакованная длина i32])[данные].
// При ненулевом ключе тело расшифровывается XTEA начиная с 5-го байта. Вход не изменяется.
func DecodeContainer(data []byte, key xtea.Key) ([]byte, error) {
	c := buffer.New(data)
	compression, err := c.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("container header: %w", err)
	}
	length, err := c.ReadI32()
	if err != nil {
		return nil, fmt.Errorf("container header: %w", err)
	}
	if length < 0 {
		return nil, fmt.Errorf("container: negative length %d", length)
	}

	if !key.IsZero() {
		end := 5 + int(length)
		if compression != CompressionNone {
			end += 4
		}
		if end > len(data) {
			return nil, fmt.Errorf("%w: encrypted body %d of %d", buffer.ErrOutOfBounds, end, len(data))
		}
		decrypted, err := decrypt(data, 5, end, key)
		if err != nil {
			return nil, err
		}
		c = buffer.New(decrypted)
		if err := c.Seek(5); err != nil {
			return nil, err
		}
	}

	if compression == CompressionNone {
		return c.ReadBytes(int(length))
	}

	decompressedLength, err := c.ReadI32()
	if err != nil {
		return nil, fmt.Errorf("container header: %w", err)
	}
	body, err := c.ReadBytes(int(length))
	if err != nil {
		return nil, fmt.Errorf("container body: %w", err)
	}

	var out []byte
	switch compression {
	case CompressionBzip2:
		out, err = io.ReadAll(bzip2.NewReader(io.MultiReader(bytes.NewReader(bzip2Header), bytes.NewReader(body))))
	case CompressionGzip:
		out, err = gunzip(body)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, compression)
	}
	if err != nil {
		return nil, fmt.Errorf("container decompress: %w", err)
	}
	if len(out) != int(decompressedLength) {
		return nil, fmt.Errorf("container: decompressed %d bytes, header says %d", len(out), decompressedLength)
	}
	return out, nil
}

func gunzip(body []byte) ([]byte, error) {
	rd, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

// decrypt возвращает копию data, в которой [start, end) расшифрован блоками по 8 байт.
// Неполный последний блок остаётся как есть.
func decrypt(data []byte, start, end int, key xtea.Key) ([]byte, error) {
	cipher, err := newCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	for i := start; i+8 <= end; i += 8 {
		cipher.Decrypt(out[i:i+8], out[i:i+8])
	}
	return out, nil
}

func newCipher(key xtea.Key) (*xteacipher.Cipher, error) {
	var raw [16]byte
	for i, word := range key {
		binary.BigEndian.PutUint32(raw[i*4:], uint32(word))
	}
	return xteacipher.NewCipher(raw[:])
}

// EncodeContainer упаковывает данные в контейнер и при ненулевом ключе шифрует его.
// Поддерживаются CompressionNone и CompressionGzip.
func EncodeContainer(compression int, data []byte, key xtea.Key) ([]byte, error) {
	var body []byte
	switch compression {
	case CompressionNone:
		body = data
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		body = buf.Bytes()
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, compression)
	}

	out := make([]byte, 0, 9+len(body))
	out = append(out, byte(compression))
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
	if compression != CompressionNone {
		out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	}
	out = append(out, body...)

	if key.IsZero() {
		return out, nil
	}
	cipher, err := newCipher(key)
	if err != nil {
		return nil, err
	}
	for i := 5; i+8 <= len(out); i += 8 {
		cipher.Encrypt(out[i:i+8], out[i:i+8])
	}
	return out, nil
}
