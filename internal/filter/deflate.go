package filter

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
)

// Deflate implements the deflate filter (zlib streams).
type Deflate struct {
	level int
}

// NewDeflate creates a new deflate filter.
// Client data: [0] = compression level (0-9, default 6).
func NewDeflate(clientData []uint32) *Deflate {
	level := 6
	if len(clientData) > 0 && clientData[0] <= 9 {
		level = int(clientData[0])
	}
	return &Deflate{level: level}
}

func (f *Deflate) ID() uint16 {
	return IDDeflate
}

func (f *Deflate) Decode(input []byte) ([]byte, error) {
	return f.DecodeLimit(input, math.MaxInt-1)
}

// DecodeLimit decodes input, failing with ErrTooLarge as soon as the
// output passes limit bytes.
func (f *Deflate) DecodeLimit(input []byte, limit int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()

	output, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	if len(output) > limit {
		return nil, fmt.Errorf("%w: zlib stream exceeds %d bytes", ErrTooLarge, limit)
	}
	return output, nil
}

func (f *Deflate) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}
