package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-chunkio/section"
)

// Transfer describes the elements one chunk contributes to a read.
type Transfer struct {
	// Chunk is the chunk coordinate.
	Chunk []uint64

	// Src selects the contributing elements in chunk-local coordinates.
	Src []section.Range

	// DstOffset is the flat output index of the first element.
	DstOffset uint64

	// DstStrides are the output strides in elements, per dimension. Moving
	// one step along Src[d] advances the output by DstStrides[d]. The
	// slice is shared by all transfers of an Indexer and must not be
	// modified.
	DstStrides []uint64

	// Count is the number of elements transferred.
	Count uint64
}

// Indexer yields the transfers needed to read a section, in row-major
// chunk order. It is single-pass and not safe for concurrent use.
type Indexer struct {
	sel        section.Section
	shape      []uint64
	chunkShape []uint64
	outStrides []uint64
	chunks     *section.ChunkIterator

	visited uint64
	skipped uint64
}

// NewIndexer validates s against shape and prepares the iteration. Invalid
// sections are rejected here, before any chunk is touched.
func NewIndexer(shape, chunkShape []uint64, s section.Section) (*Indexer, error) {
	if len(chunkShape) != len(shape) {
		return nil, fmt.Errorf("%w: shape rank %d, chunk rank %d", ErrInvalidDescriptor, len(shape), len(chunkShape))
	}
	if err := s.CheckInRange(shape); err != nil {
		return nil, err
	}
	chunks, err := s.Chunks(chunkShape)
	if err != nil {
		return nil, err
	}

	rank := len(shape)
	out := make([]uint64, rank)
	out[rank-1] = 1
	for d := rank - 2; d >= 0; d-- {
		out[d] = out[d+1] * s.Range(d+1).Count
	}

	return &Indexer{
		sel:        s,
		shape:      shape,
		chunkShape: chunkShape,
		outStrides: out,
		chunks:     chunks,
	}, nil
}

// Total returns the number of elements the section selects.
func (ix *Indexer) Total() uint64 {
	return ix.sel.Size()
}

// Visited returns how many chunk coordinates have been examined so far.
func (ix *Indexer) Visited() uint64 {
	return ix.visited
}

// Skipped returns how many examined chunks held no selected element.
func (ix *Indexer) Skipped() uint64 {
	return ix.skipped
}

// Next returns the next transfer, or false when the section is exhausted.
func (ix *Indexer) Next() (Transfer, bool) {
	for {
		coord, ok := ix.chunks.Next()
		if !ok {
			return Transfer{}, false
		}
		ix.visited++

		if t, ok := ix.transfer(coord); ok {
			return t, true
		}
		ix.skipped++
	}
}

func (ix *Indexer) transfer(coord []uint64) (Transfer, bool) {
	rank := len(coord)
	t := Transfer{
		Chunk:      coord,
		Src:        make([]section.Range, rank),
		DstStrides: ix.outStrides,
		Count:      1,
	}

	for d := 0; d < rank; d++ {
		r := ix.sel.Range(d)
		lo := coord[d] * ix.chunkShape[d]
		hi := ix.shape[d]
		if ix.chunkShape[d] < hi-lo {
			hi = lo + ix.chunkShape[d]
		}

		in, ok := r.Intersect(lo, hi)
		if !ok {
			return Transfer{}, false
		}
		t.Src[d] = section.Range{Start: in.Start - lo, Count: in.Count, Stride: in.Stride}
		t.DstOffset += (in.Start - r.Start) / r.Stride * ix.outStrides[d]
		t.Count *= in.Count
	}
	return t, true
}
