package section

import "fmt"

// ChunkIterator enumerates the coordinates of the chunks touched by a
// section, in row-major order. It is single-pass: once exhausted it stays
// exhausted. Create a new iterator to start over.
type ChunkIterator struct {
	first []uint64
	last  []uint64
	cur   []uint64
	done  bool
}

// Chunks returns an iterator over the coordinates of every chunk in a
// regular grid of chunkShape that contains at least one index of the
// section's bounding box. Along each dimension the candidates run from
// start/chunk to last/chunk.
func (s Section) Chunks(chunkShape []uint64) (*ChunkIterator, error) {
	if len(chunkShape) != len(s.ranges) {
		return nil, fmt.Errorf("%w: section rank %d, chunk rank %d", ErrInvalidSection, len(s.ranges), len(chunkShape))
	}
	if len(s.ranges) == 0 {
		return &ChunkIterator{done: true}, nil
	}

	it := &ChunkIterator{
		first: make([]uint64, len(chunkShape)),
		last:  make([]uint64, len(chunkShape)),
		cur:   make([]uint64, len(chunkShape)),
	}
	for d, r := range s.ranges {
		if chunkShape[d] == 0 {
			return nil, fmt.Errorf("%w: chunk dimension %d is zero", ErrInvalidSection, d)
		}
		it.first[d] = r.Start / chunkShape[d]
		it.last[d] = r.Last() / chunkShape[d]
	}
	copy(it.cur, it.first)
	return it, nil
}

// Next returns the next chunk coordinate. The returned slice is owned by
// the caller.
func (it *ChunkIterator) Next() ([]uint64, bool) {
	if it.done {
		return nil, false
	}

	coord := make([]uint64, len(it.cur))
	copy(coord, it.cur)

	// Odometer increment, last dimension fastest.
	d := len(it.cur) - 1
	for ; d >= 0; d-- {
		if it.cur[d] < it.last[d] {
			it.cur[d]++
			break
		}
		it.cur[d] = it.first[d]
	}
	if d < 0 {
		it.done = true
	}

	return coord, true
}

// Len returns the total number of candidate coordinates the iterator
// produces from its start, including those already returned.
func (it *ChunkIterator) Len() uint64 {
	if len(it.first) == 0 {
		return 0
	}
	n := uint64(1)
	for d := range it.first {
		n *= it.last[d] - it.first[d] + 1
	}
	return n
}
