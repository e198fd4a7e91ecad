package btree

import (
	"fmt"
	"math"
	"sort"

	"github.com/robert-malhotra/go-chunkio/internal/alloc"
	"github.com/robert-malhotra/go-chunkio/internal/binary"
)

// DefaultFanout is the number of children per node used when Write is
// given a non-positive fanout.
const DefaultFanout = 32

// Nodes start on 8-byte boundaries after unaligned chunk payloads.
const nodeAlignment = 8

// NodeSize returns the encoded size of a chunk tree node with the given
// number of children.
func NodeSize(offsetSize, rank, children int) int {
	return nodeSize(offsetSize, rank, children)
}

// WriteNodeAt encodes one node at addr. keys must hold len(children)+1
// entries of rank+1 offsets each. Siblings are written as undefined.
func WriteNodeAt(w *binary.Writer, addr uint64, level uint8, keys []Key, children []uint64) error {
	if len(keys) != len(children)+1 {
		return fmt.Errorf("node needs %d keys for %d children, got %d", len(children)+1, len(children), len(keys))
	}
	if len(children) > math.MaxUint16 {
		return fmt.Errorf("node has %d children, limit is %d", len(children), math.MaxUint16)
	}

	nw := w.At(int64(addr))
	if err := nw.WriteBytes([]byte(signature)); err != nil {
		return err
	}
	if err := nw.WriteUint8(nodeTypeChunk); err != nil {
		return err
	}
	if err := nw.WriteUint8(level); err != nil {
		return err
	}
	if err := nw.WriteUint16(uint16(len(children))); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if err := nw.WriteOffset(nw.UndefinedOffset()); err != nil {
			return err
		}
	}

	for i, k := range keys {
		if err := nw.WriteUint32(k.Size); err != nil {
			return err
		}
		if err := nw.WriteUint32(k.FilterMask); err != nil {
			return err
		}
		for _, off := range k.Offsets {
			if err := nw.WriteUint64(off); err != nil {
				return err
			}
		}
		if i < len(children) {
			if err := nw.WriteOffset(children[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

type written struct {
	addr  uint64
	first Key
	last  Key
}

// Write lays out a chunk tree indexing entries and returns the address of
// its root. Entries may be given in any order; they are sorted row-major.
// No entries yields the undefined address.
func Write(w *binary.Writer, a *alloc.Allocator, chunkShape []uint64, entries []Entry, fanout int) (uint64, error) {
	if len(entries) == 0 {
		return w.UndefinedOffset(), nil
	}
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	if fanout < 2 {
		return 0, fmt.Errorf("fanout %d is too small", fanout)
	}
	rank := len(chunkShape)

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	for _, e := range sorted {
		if len(e.Coord) != rank {
			return 0, fmt.Errorf("entry coordinate %v has rank %d, want %d", e.Coord, len(e.Coord), rank)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return compareOffsets(sorted[i].Coord, sorted[j].Coord, rank) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if compareOffsets(sorted[i-1].Coord, sorted[i].Coord, rank) == 0 {
			return 0, fmt.Errorf("duplicate chunk coordinate %v", sorted[i].Coord)
		}
	}

	var level []written
	for start := 0; start < len(sorted); start += fanout {
		group := sorted[start:min(start+fanout, len(sorted))]
		keys := make([]Key, 0, len(group)+1)
		children := make([]uint64, 0, len(group))
		for _, e := range group {
			keys = append(keys, Key{Size: e.Size, FilterMask: e.FilterMask, Offsets: elementOffsets(e.Coord, chunkShape, 0)})
			children = append(children, e.Address)
		}
		keys = append(keys, Key{Offsets: elementOffsets(group[len(group)-1].Coord, chunkShape, 1)})

		n, err := writeNode(w, a, 0, keys, children, rank)
		if err != nil {
			return 0, err
		}
		level = append(level, n)
	}

	for depth := uint8(1); len(level) > 1; depth++ {
		var next []written
		for start := 0; start < len(level); start += fanout {
			group := level[start:min(start+fanout, len(level))]
			keys := make([]Key, 0, len(group)+1)
			children := make([]uint64, 0, len(group))
			for _, c := range group {
				keys = append(keys, c.first)
				children = append(children, c.addr)
			}
			keys = append(keys, group[len(group)-1].last)

			n, err := writeNode(w, a, depth, keys, children, rank)
			if err != nil {
				return 0, err
			}
			next = append(next, n)
		}
		level = next
	}

	return level[0].addr, nil
}

func writeNode(w *binary.Writer, a *alloc.Allocator, level uint8, keys []Key, children []uint64, rank int) (written, error) {
	addr := a.AllocAligned(uint64(NodeSize(w.OffsetSize(), rank, len(children))), nodeAlignment, fmt.Sprintf("directory node level %d", level))
	if err := WriteNodeAt(w, addr, level, keys, children); err != nil {
		return written{}, fmt.Errorf("writing directory node at 0x%x: %w", addr, err)
	}
	return written{addr: addr, first: keys[0], last: keys[len(keys)-1]}, nil
}

// elementOffsets converts a chunk coordinate, advanced by step chunks along
// every dimension, to rank+1 element offsets.
func elementOffsets(coord, chunkShape []uint64, step uint64) []uint64 {
	out := make([]uint64, len(coord)+1)
	for i, c := range coord {
		out[i] = (c + step) * chunkShape[i]
	}
	return out
}
