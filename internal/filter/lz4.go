package filter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/pierrec/lz4/v4"
)

const defaultLZ4BlockSize = 1 << 30

// LZ4 implements the block-framed LZ4 filter.
//
// Layout, all integers big-endian:
//
//	uint64 original size
//	uint32 block size
//	repeated: uint32 compressed size, compressed bytes
//
// A block whose compressed size equals its original size is stored raw.
type LZ4 struct {
	blockSize int
}

// NewLZ4 creates a new LZ4 filter.
// Client data: [0] = block size in bytes (default 1 GiB).
func NewLZ4(clientData []uint32) *LZ4 {
	blockSize := defaultLZ4BlockSize
	if len(clientData) > 0 && clientData[0] > 0 && clientData[0] <= math.MaxInt32 {
		blockSize = int(clientData[0])
	}
	return &LZ4{blockSize: blockSize}
}

func (f *LZ4) ID() uint16 {
	return IDLZ4
}

var errLZ4Truncated = errors.New("lz4: truncated input")

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	return f.DecodeLimit(input, math.MaxInt32)
}

// DecodeLimit decodes input, rejecting a header that announces more than
// limit bytes before anything is allocated.
func (f *LZ4) DecodeLimit(input []byte, limit int) ([]byte, error) {
	if len(input) < 12 {
		return nil, errLZ4Truncated
	}
	origSize := binary.BigEndian.Uint64(input[0:8])
	blockSize := uint64(binary.BigEndian.Uint32(input[8:12]))
	if blockSize == 0 {
		return nil, fmt.Errorf("lz4: zero block size")
	}
	if origSize > uint64(min(limit, math.MaxInt32)) {
		return nil, fmt.Errorf("%w: lz4 original size %d exceeds %d", ErrTooLarge, origSize, min(limit, math.MaxInt32))
	}

	out := make([]byte, origSize)
	pos := 12
	for written := uint64(0); written < origSize; {
		if pos+4 > len(input) {
			return nil, errLZ4Truncated
		}
		compSize := int(binary.BigEndian.Uint32(input[pos : pos+4]))
		pos += 4
		if compSize > len(input)-pos {
			return nil, errLZ4Truncated
		}
		want := min(blockSize, origSize-written)
		dst := out[written : written+want]
		src := input[pos : pos+compSize]

		if uint64(compSize) == want {
			copy(dst, src)
		} else {
			n, err := lz4.UncompressBlock(src, dst)
			if err != nil {
				return nil, fmt.Errorf("lz4 decompress: %w", err)
			}
			if uint64(n) != want {
				return nil, fmt.Errorf("lz4: block decoded to %d bytes, want %d", n, want)
			}
		}
		pos += compSize
		written += want
	}
	return out, nil
}

func (f *LZ4) Encode(input []byte) ([]byte, error) {
	out := make([]byte, 12, 12+len(input)+len(input)/f.blockSize*4+4)
	binary.BigEndian.PutUint64(out[0:8], uint64(len(input)))
	binary.BigEndian.PutUint32(out[8:12], uint32(f.blockSize))

	var c lz4.Compressor
	for start := 0; start < len(input); start += f.blockSize {
		block := input[start:min(start+f.blockSize, len(input))]
		dst := make([]byte, lz4.CompressBlockBound(len(block)))
		n, err := c.CompressBlock(block, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// Incompressible blocks are stored raw.
		if n == 0 || n >= len(block) {
			dst, n = block, len(block)
		}
		out = binary.BigEndian.AppendUint32(out, uint32(n))
		out = append(out, dst[:n]...)
	}
	return out, nil
}
