package btree

import (
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-chunkio/internal/binary"
)

const (
	signature     = "TREE"
	nodeTypeChunk = 1
)

// ErrCorruptDirectory is returned when a directory node is structurally
// inconsistent.
var ErrCorruptDirectory = errors.New("corrupt chunk directory")

// Key is a chunk key as stored on disk.
type Key struct {
	// Size is the stored (possibly filtered) size of the chunk in bytes.
	Size uint32

	// FilterMask has bit i set when filter i was skipped for the chunk.
	FilterMask uint32

	// Offsets holds rank+1 element offsets; the last one is always zero.
	Offsets []uint64
}

type node struct {
	addr     uint64
	level    uint8
	keys     []Key
	children []uint64
}

// compareOffsets orders element offsets lexicographically over the first
// rank dimensions.
func compareOffsets(a, b []uint64, rank int) int {
	for i := 0; i < rank; i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// checkBounds verifies that the keys of n's children lie in [lo, hi), the
// range given by the parent entry that points at n. A nil lo means n is
// the root.
func (n *node) checkBounds(lo, hi []uint64, rank int) error {
	if lo == nil {
		return nil
	}
	if compareOffsets(n.keys[0].Offsets, lo, rank) < 0 {
		return corruptf(n.addr, "first key %v is below parent key %v", n.keys[0].Offsets[:rank], lo[:rank])
	}
	if last := len(n.children) - 1; last >= 0 && compareOffsets(n.keys[last].Offsets, hi, rank) >= 0 {
		return corruptf(n.addr, "key %v is not below parent bound %v", n.keys[last].Offsets[:rank], hi[:rank])
	}
	return nil
}

func corruptf(addr uint64, format string, args ...any) error {
	return fmt.Errorf("%w: node at 0x%x: %s", ErrCorruptDirectory, addr, fmt.Sprintf(format, args...))
}

// readNode parses the node at addr. I/O errors are returned wrapped;
// structural problems are reported as ErrCorruptDirectory.
func readNode(r *binary.Reader, addr uint64, rank int) (*node, error) {
	if r.IsUndefinedOffset(addr) {
		return nil, corruptf(addr, "undefined child address")
	}
	cfg := binary.Config{
		ByteOrder:  r.ByteOrder(),
		OffsetSize: r.OffsetSize(),
		LengthSize: r.LengthSize(),
	}

	// The header says how many keys follow, so a node costs two reads.
	headerSize := 8 + 2*r.OffsetSize()
	header, err := r.ReadRange(addr, uint64(headerSize))
	if err != nil {
		return nil, fmt.Errorf("reading directory node at 0x%x: %w", addr, err)
	}
	hr := binary.NewReader(binary.NewBuffer(header), cfg)
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(sig) != signature {
		return nil, corruptf(addr, "bad signature %q", string(sig))
	}
	nodeType, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if nodeType != nodeTypeChunk {
		return nil, corruptf(addr, "node type %d is not a chunk tree", nodeType)
	}
	level, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	used, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	entriesUsed := int(used)
	if level > 0 && entriesUsed == 0 {
		return nil, corruptf(addr, "internal node has no children")
	}

	bodySize := nodeSize(r.OffsetSize(), rank, entriesUsed) - headerSize
	body, err := r.ReadRange(addr+uint64(headerSize), uint64(bodySize))
	if errors.Is(err, io.ErrUnexpectedEOF) {
		// A complete header whose entries run past the end of the data.
		return nil, corruptf(addr, "%d entries need %d bytes past the header: %v", entriesUsed, bodySize, err)
	}
	if err != nil {
		return nil, fmt.Errorf("reading directory node at 0x%x: %w", addr, err)
	}
	nr := binary.NewReader(binary.NewBuffer(body), cfg)

	n := &node{
		addr:     addr,
		level:    level,
		keys:     make([]Key, 0, entriesUsed+1),
		children: make([]uint64, 0, entriesUsed),
	}

	for i := 0; i <= entriesUsed; i++ {
		k, err := readKey(nr, rank)
		if err != nil {
			return nil, fmt.Errorf("reading key %d of directory node at 0x%x: %w", i, addr, err)
		}
		if i > 0 && compareOffsets(n.keys[i-1].Offsets, k.Offsets, rank) >= 0 {
			return nil, corruptf(addr, "key %d is not greater than key %d", i, i-1)
		}
		n.keys = append(n.keys, k)

		if i == entriesUsed {
			break
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading child %d of directory node at 0x%x: %w", i, addr, err)
		}
		n.children = append(n.children, child)
	}

	return n, nil
}

func readKey(r *binary.Reader, rank int) (Key, error) {
	size, err := r.ReadUint32()
	if err != nil {
		return Key{}, err
	}
	mask, err := r.ReadUint32()
	if err != nil {
		return Key{}, err
	}
	offsets := make([]uint64, rank+1)
	for d := range offsets {
		if offsets[d], err = r.ReadUint64(); err != nil {
			return Key{}, err
		}
	}
	return Key{Size: size, FilterMask: mask, Offsets: offsets}, nil
}

// nodeSize returns the encoded size of a node with the given number of
// children.
func nodeSize(offsetSize, rank, children int) int {
	keySize := 8 + 8*(rank+1)
	return 4 + 1 + 1 + 2 + 2*offsetSize + (children+1)*keySize + children*offsetSize
}
