// Package binary provides positioned binary I/O over byte-range sources:
// the node reads of the chunk directory and the chunk payload reads of the
// materializer both go through a [Reader].
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidSize is returned when an invalid offset or length size is specified.
var ErrInvalidSize = errors.New("invalid offset/length size: must be 2, 4, or 8")

// Reader decodes little- or big-endian fields with variable-width offsets
// and lengths from an io.ReaderAt. A Reader carries its own position; use
// At to derive independent readers that share the source, which makes
// Readers safe to use from multiple goroutines as long as each goroutine
// owns the Reader it advances.
type Reader struct {
	r          io.ReaderAt
	order      binary.ByteOrder
	offsetSize int
	lengthSize int
	pos        int64
}

// Config holds reader configuration.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int // 2, 4, or 8 bytes
	LengthSize int // 2, 4, or 8 bytes
}

// DefaultConfig returns little-endian byte order with 8-byte offsets and lengths.
func DefaultConfig() Config {
	return Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: 8,
		LengthSize: 8,
	}
}

// Validate checks the offset and length sizes.
func (c Config) Validate() error {
	if !validSize(c.OffsetSize) || !validSize(c.LengthSize) {
		return fmt.Errorf("%w: offset=%d length=%d", ErrInvalidSize, c.OffsetSize, c.LengthSize)
	}
	return nil
}

func validSize(n int) bool {
	return n == 2 || n == 4 || n == 8
}

// NewReader creates a binary reader with the given configuration.
// A nil ByteOrder means little-endian.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	order := cfg.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	return &Reader{
		r:          r,
		order:      order,
		offsetSize: cfg.OffsetSize,
		lengthSize: cfg.LengthSize,
	}
}

// At returns a new reader positioned at the given offset.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{
		r:          r.r,
		order:      r.order,
		offsetSize: r.offsetSize,
		lengthSize: r.lengthSize,
		pos:        offset,
	}
}

// ReadRange performs a single positioned read of length bytes at offset.
// It does not move the reader's position. A source that ends early yields
// io.ErrUnexpectedEOF.
func (r *Reader) ReadRange(offset, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if offset > uint64(1<<63-1) || length > uint64(1<<63-1)-offset {
		return nil, fmt.Errorf("byte range %d+%d exceeds the addressable size", offset, length)
	}
	buf := make([]byte, length)
	n, err := r.r.ReadAt(buf, int64(offset))
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// ReadBytes reads exactly n bytes from the current position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf, err := r.ReadRange(uint64(r.pos), uint64(n))
	if err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(buf), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(buf), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(buf), nil
}

// ReadOffset reads a file offset using the configured offset size.
func (r *Reader) ReadOffset() (uint64, error) {
	buf, err := r.ReadBytes(r.offsetSize)
	if err != nil {
		return 0, err
	}
	return r.decodeUint(buf), nil
}

// ReadLength reads a length value using the configured length size.
func (r *Reader) ReadLength() (uint64, error) {
	buf, err := r.ReadBytes(r.lengthSize)
	if err != nil {
		return 0, err
	}
	return r.decodeUint(buf), nil
}

func (r *Reader) decodeUint(buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(r.order.Uint16(buf))
	case 4:
		return uint64(r.order.Uint32(buf))
	default:
		return r.order.Uint64(buf)
	}
}

// IsUndefinedOffset reports whether offset is the all-ones "undefined
// address" sentinel for the configured offset size.
func (r *Reader) IsUndefinedOffset(offset uint64) bool {
	return offset == UndefinedAddress(r.offsetSize)
}

// UndefinedAddress returns the all-ones sentinel for an offset of size bytes.
func UndefinedAddress(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(uint(size)*8) - 1
}

// OffsetSize returns the configured offset size in bytes.
func (r *Reader) OffsetSize() int {
	return r.offsetSize
}

// LengthSize returns the configured length size in bytes.
func (r *Reader) LengthSize() int {
	return r.lengthSize
}

// ByteOrder returns the configured byte order.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.order
}
