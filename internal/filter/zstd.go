package filter

import (
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return decoder
	},
}

// Zstd implements the Zstandard filter. Each chunk is a single zstd frame.
type Zstd struct {
	level zstd.EncoderLevel
}

// NewZstd creates a new Zstandard filter.
// Client data: [0] = compression level (zstd levels, default 3).
func NewZstd(clientData []uint32) *Zstd {
	level := 3
	if len(clientData) > 0 && clientData[0] > 0 {
		level = int(clientData[0])
	}
	return &Zstd{level: zstd.EncoderLevelFromZstd(level)}
}

func (f *Zstd) ID() uint16 {
	return IDZstd
}

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	return f.DecodeLimit(input, math.MaxInt)
}

// DecodeLimit decodes input, rejecting a frame whose header announces more
// than limit bytes.
func (f *Zstd) DecodeLimit(input []byte, limit int) ([]byte, error) {
	var h zstd.Header
	if err := h.Decode(input); err == nil && h.HasFCS && h.FrameContentSize > uint64(limit) {
		return nil, fmt.Errorf("%w: zstd frame content size %d exceeds %d", ErrTooLarge, h.FrameContentSize, limit)
	}

	decoder := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)

	out, err := decoder.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: zstd output exceeds %d bytes", ErrTooLarge, limit)
	}
	return out, nil
}

func (f *Zstd) Encode(input []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(f.level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(input, nil), nil
}
