package layout

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/robert-malhotra/go-chunkio/internal/binary"
	"github.com/robert-malhotra/go-chunkio/internal/btree"
	"github.com/robert-malhotra/go-chunkio/section"
)

// ErrInvalidDescriptor is returned for inconsistent array geometry.
var ErrInvalidDescriptor = errors.New("invalid array descriptor")

// Location is where the stored bytes of one chunk live.
type Location struct {
	Address    uint64
	Size       uint64
	FilterMask uint32

	// Direct means the bytes are unfiltered and row-major in the chunk
	// shape, so any element range can be read on its own.
	Direct bool
}

// Layout is the closed set of storage layouts: *Regular and *Contiguous.
type Layout interface {
	// Shape returns the array shape.
	Shape() []uint64

	// ChunkShape returns the shape of one stored chunk.
	ChunkShape() []uint64

	// ElementSize returns the size of one element in bytes.
	ElementSize() int

	// Indexer returns the transfers needed to read s.
	Indexer(s section.Section) (*Indexer, error)

	// Locate returns the storage of the chunk at coord. The boolean is
	// false when the chunk was never written.
	Locate(coord []uint64) (Location, bool, error)

	layout()
}

// Directory resolves chunk coordinates to stored chunks.
type Directory interface {
	Lookup(coord []uint64) (btree.Entry, bool, error)
}

func validateGeometry(shape, chunkShape []uint64, elemSize int) error {
	if len(shape) == 0 {
		return fmt.Errorf("%w: rank 0", ErrInvalidDescriptor)
	}
	if len(chunkShape) != len(shape) {
		return fmt.Errorf("%w: shape rank %d, chunk rank %d", ErrInvalidDescriptor, len(shape), len(chunkShape))
	}
	if elemSize <= 0 {
		return fmt.Errorf("%w: element size %d", ErrInvalidDescriptor, elemSize)
	}
	for d := range shape {
		if shape[d] == 0 || chunkShape[d] == 0 {
			return fmt.Errorf("%w: dimension %d has shape %d and chunk %d", ErrInvalidDescriptor, d, shape[d], chunkShape[d])
		}
	}
	if _, ok := byteSize(chunkShape, elemSize); !ok {
		return fmt.Errorf("%w: chunk of %v elements overflows", ErrInvalidDescriptor, chunkShape)
	}
	return nil
}

// byteSize returns elemSize * product(shape), reporting overflow.
func byteSize(shape []uint64, elemSize int) (uint64, bool) {
	n := uint64(elemSize)
	for _, s := range shape {
		hi, lo := bits.Mul64(n, s)
		if hi != 0 || lo > math.MaxInt64 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

func cloneShape(s []uint64) []uint64 {
	out := make([]uint64, len(s))
	copy(out, s)
	return out
}

// Regular is a chunked layout over a regular grid.
type Regular struct {
	shape      []uint64
	chunkShape []uint64
	elemSize   int
	chunkBytes uint64
	dir        Directory
}

// NewRegular creates a chunked layout. dir locates written chunks.
func NewRegular(shape, chunkShape []uint64, elemSize int, dir Directory) (*Regular, error) {
	if err := validateGeometry(shape, chunkShape, elemSize); err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, fmt.Errorf("%w: chunked layout without a directory", ErrInvalidDescriptor)
	}
	chunkBytes, _ := byteSize(chunkShape, elemSize)
	return &Regular{
		shape:      cloneShape(shape),
		chunkShape: cloneShape(chunkShape),
		elemSize:   elemSize,
		chunkBytes: chunkBytes,
		dir:        dir,
	}, nil
}

func (r *Regular) Shape() []uint64      { return cloneShape(r.shape) }
func (r *Regular) ChunkShape() []uint64 { return cloneShape(r.chunkShape) }
func (r *Regular) ElementSize() int     { return r.elemSize }

// ChunkBytes returns the decoded size of every chunk, edge chunks included.
func (r *Regular) ChunkBytes() uint64 { return r.chunkBytes }

func (r *Regular) Indexer(s section.Section) (*Indexer, error) {
	return NewIndexer(r.shape, r.chunkShape, s)
}

func (r *Regular) Locate(coord []uint64) (Location, bool, error) {
	e, found, err := r.dir.Lookup(coord)
	if err != nil || !found {
		return Location{}, false, err
	}
	return Location{Address: e.Address, Size: uint64(e.Size), FilterMask: e.FilterMask}, true, nil
}

func (r *Regular) layout() {}

// Contiguous stores the whole array as one row-major block.
type Contiguous struct {
	shape    []uint64
	elemSize int
	address  uint64
	size     uint64
	missing  bool
}

// NewContiguous creates a contiguous layout at address. An address equal
// to the undefined address for offsetSize means no storage was allocated
// and every element reads as the fill value.
func NewContiguous(shape []uint64, elemSize int, address uint64, offsetSize int) (*Contiguous, error) {
	if err := validateGeometry(shape, shape, elemSize); err != nil {
		return nil, err
	}
	size, _ := byteSize(shape, elemSize)
	return &Contiguous{
		shape:    cloneShape(shape),
		elemSize: elemSize,
		address:  address,
		size:     size,
		missing:  address == binary.UndefinedAddress(offsetSize),
	}, nil
}

func (c *Contiguous) Shape() []uint64      { return cloneShape(c.shape) }
func (c *Contiguous) ChunkShape() []uint64 { return cloneShape(c.shape) }
func (c *Contiguous) ElementSize() int     { return c.elemSize }

// Address returns the file offset of the block.
func (c *Contiguous) Address() uint64 { return c.address }

// Size returns the block size in bytes.
func (c *Contiguous) Size() uint64 { return c.size }

func (c *Contiguous) Indexer(s section.Section) (*Indexer, error) {
	return NewIndexer(c.shape, c.shape, s)
}

func (c *Contiguous) Locate(coord []uint64) (Location, bool, error) {
	for _, v := range coord {
		if v != 0 {
			return Location{}, false, nil
		}
	}
	if c.missing {
		return Location{}, false, nil
	}
	return Location{Address: c.address, Size: c.size, Direct: true}, true, nil
}

func (c *Contiguous) layout() {}
