// Package fixture lays out synthetic chunked arrays: chunk payloads
// encoded through a filter pipeline and a chunk directory indexing them,
// written into an in-memory file. Tests and the chunkdump generate command
// use it to produce inputs with known contents.
package fixture

import (
	"bytes"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-chunkio/internal/alloc"
	"github.com/robert-malhotra/go-chunkio/internal/binary"
	"github.com/robert-malhotra/go-chunkio/internal/btree"
	"github.com/robert-malhotra/go-chunkio/internal/filter"
)

// HeaderSize is the number of bytes reserved at the start of every file.
const HeaderSize = 64

// Magic is written at offset 0 so generated files are recognizable.
var Magic = []byte("CHUNKIO\x00")

// Header is what Finish records after Magic: the address sizes the
// directory was written with, its root and the end of the file.
//
//	offset 8   uint8  offset size
//	offset 9   uint8  length size
//	offset 16  root address (offset size)
//	           end of file (length size)
type Header struct {
	OffsetSize int
	LengthSize int
	Root       uint64
	EOF        uint64
}

const headerFieldsAt = 16

// ReadHeader parses the header of a file produced by a Builder.
func ReadHeader(r io.ReaderAt) (Header, error) {
	hr := binary.NewReader(r, binary.DefaultConfig())
	magic, err := hr.ReadBytes(len(Magic))
	if err != nil {
		return Header{}, fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(magic, Magic) {
		return Header{}, fmt.Errorf("not a generated array file")
	}
	offsetSize, err := hr.ReadUint8()
	if err != nil {
		return Header{}, fmt.Errorf("reading header: %w", err)
	}
	lengthSize, err := hr.ReadUint8()
	if err != nil {
		return Header{}, fmt.Errorf("reading header: %w", err)
	}

	cfg := binary.DefaultConfig()
	cfg.OffsetSize = int(offsetSize)
	cfg.LengthSize = int(lengthSize)
	if err := cfg.Validate(); err != nil {
		return Header{}, fmt.Errorf("file has no chunk directory: %w", err)
	}
	fr := binary.NewReader(r, cfg).At(headerFieldsAt)
	h := Header{OffsetSize: cfg.OffsetSize, LengthSize: cfg.LengthSize}
	if h.Root, err = fr.ReadOffset(); err != nil {
		return Header{}, fmt.Errorf("reading root address: %w", err)
	}
	if h.EOF, err = fr.ReadLength(); err != nil {
		return Header{}, fmt.Errorf("reading end of file: %w", err)
	}
	return h, nil
}

// Builder accumulates chunks for one array.
type Builder struct {
	buf   *binary.Buffer
	w     *binary.Writer
	alloc *alloc.Allocator

	shape      []uint64
	chunkShape []uint64
	elemSize   int
	infos      []filter.Info
	pipeline   *filter.Pipeline
	fanout     int

	entries []btree.Entry
}

// Option configures a Builder.
type Option func(*Builder)

// WithConfig sets the offset and length sizes and the byte order of the
// directory.
func WithConfig(cfg binary.Config) Option {
	return func(b *Builder) {
		b.w = binary.NewWriter(b.buf, cfg)
	}
}

// WithFilters sets the filter list chunks are encoded with.
func WithFilters(infos ...filter.Info) Option {
	return func(b *Builder) {
		b.infos = append([]filter.Info(nil), infos...)
	}
}

// WithFanout sets the maximum number of children per directory node.
func WithFanout(n int) Option {
	return func(b *Builder) {
		b.fanout = n
	}
}

// New starts an array of the given geometry.
func New(shape, chunkShape []uint64, elemSize int, opts ...Option) *Builder {
	buf := binary.NewBuffer(nil)
	b := &Builder{
		buf:        buf,
		w:          binary.NewWriter(buf, binary.DefaultConfig()),
		alloc:      alloc.New(HeaderSize),
		shape:      append([]uint64(nil), shape...),
		chunkShape: append([]uint64(nil), chunkShape...),
		elemSize:   elemSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.pipeline = filter.NewPipeline(b.infos, elemSize)
	_ = b.w.At(0).WriteBytes(Magic)
	return b
}

// Buffer returns the in-memory file.
func (b *Builder) Buffer() *binary.Buffer {
	return b.buf
}

// Filters returns the filter list chunks are encoded with.
func (b *Builder) Filters() []filter.Info {
	return append([]filter.Info(nil), b.infos...)
}

// ChunkBytes returns the decoded size of one chunk.
func (b *Builder) ChunkBytes() int {
	n := b.elemSize
	for _, c := range b.chunkShape {
		n *= int(c)
	}
	return n
}

// PutChunk encodes data, a full chunk in row-major order, through the
// filters not masked out and stores it at coord.
func (b *Builder) PutChunk(coord []uint64, data []byte, mask uint32) error {
	if len(data) != b.ChunkBytes() {
		return fmt.Errorf("chunk %v has %d bytes, want %d", coord, len(data), b.ChunkBytes())
	}
	enc, err := b.pipeline.Encode(data, mask)
	if err != nil {
		return fmt.Errorf("encoding chunk %v: %w", coord, err)
	}
	return b.PutRaw(coord, enc, mask)
}

// PutRaw stores already encoded bytes at coord.
func (b *Builder) PutRaw(coord []uint64, raw []byte, mask uint32) error {
	if len(coord) != len(b.shape) {
		return fmt.Errorf("chunk %v has rank %d, want %d", coord, len(coord), len(b.shape))
	}
	addr := b.alloc.AllocTagged(uint64(len(raw)), fmt.Sprintf("chunk %v", coord))
	if err := b.w.At(int64(addr)).WriteBytes(raw); err != nil {
		return err
	}
	b.entries = append(b.entries, btree.Entry{
		Coord:      append([]uint64(nil), coord...),
		Address:    addr,
		Size:       uint32(len(raw)),
		FilterMask: mask,
	})
	return nil
}

// Generate stores every chunk for which keep returns true (all chunks when
// keep is nil). value writes the element at global index g into elem;
// positions of edge chunks that fall outside the array stay zero.
func (b *Builder) Generate(value func(g []uint64, elem []byte), keep func(coord []uint64) bool) error {
	rank := len(b.shape)
	grid := make([]uint64, rank)
	for d := range grid {
		grid[d] = (b.shape[d] + b.chunkShape[d] - 1) / b.chunkShape[d]
	}

	coord := make([]uint64, rank)
	for {
		if keep == nil || keep(coord) {
			if err := b.PutChunk(coord, b.chunkData(coord, value), 0); err != nil {
				return err
			}
		}
		d := rank - 1
		for ; d >= 0; d-- {
			coord[d]++
			if coord[d] < grid[d] {
				break
			}
			coord[d] = 0
		}
		if d < 0 {
			return nil
		}
	}
}

func (b *Builder) chunkData(coord []uint64, value func(g []uint64, elem []byte)) []byte {
	rank := len(b.shape)
	data := make([]byte, b.ChunkBytes())
	local := make([]uint64, rank)
	g := make([]uint64, rank)
	for off := 0; off < len(data); off += b.elemSize {
		inside := true
		for d := range local {
			g[d] = coord[d]*b.chunkShape[d] + local[d]
			if g[d] >= b.shape[d] {
				inside = false
			}
		}
		if inside {
			value(g, data[off:off+b.elemSize])
		}
		for d := rank - 1; d >= 0; d-- {
			local[d]++
			if local[d] < b.chunkShape[d] {
				break
			}
			local[d] = 0
		}
	}
	return data
}

// Finish writes the chunk directory and returns its root address. An
// array without chunks yields the undefined address.
func (b *Builder) Finish() (uint64, error) {
	root, err := btree.Write(b.w, b.alloc, b.chunkShape, b.entries, b.fanout)
	if err != nil {
		return 0, err
	}
	if err := b.alloc.Validate(); err != nil {
		return 0, err
	}
	if err := b.writeHeader(root); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	return root, nil
}

func (b *Builder) writeHeader(root uint64) error {
	hw := b.w.At(int64(len(Magic)))
	if err := hw.WriteUint8(uint8(b.w.OffsetSize())); err != nil {
		return err
	}
	if err := hw.WriteUint8(uint8(b.w.LengthSize())); err != nil {
		return err
	}
	fw := b.w.At(headerFieldsAt)
	if err := fw.WriteOffset(root); err != nil {
		return err
	}
	return fw.WriteLength(b.alloc.EOFAddr())
}

// Stats reports the chunk and directory allocations made so far.
func (b *Builder) Stats() alloc.Stats {
	return b.alloc.Stats()
}

// Contiguous writes data as a contiguous block into a fresh file and
// returns the file and the block address.
func Contiguous(data []byte) (*binary.Buffer, uint64) {
	buf := binary.NewBuffer(nil)
	w := binary.NewWriter(buf, binary.DefaultConfig())
	_ = w.WriteBytes(Magic)
	_ = w.At(HeaderSize).WriteBytes(data)
	return buf, HeaderSize
}
