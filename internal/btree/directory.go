package btree

import (
	"context"
	"fmt"
	"math/bits"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-chunkio/internal/binary"
	"github.com/robert-malhotra/go-chunkio/internal/hash"
)

// Entry locates one written chunk.
type Entry struct {
	// Coord is the chunk coordinate in the chunk grid.
	Coord []uint64

	// Address is the file offset of the stored chunk bytes.
	Address uint64

	// Size is the stored size of the chunk in bytes.
	Size uint32

	// FilterMask has bit i set when filter i was skipped for the chunk.
	FilterMask uint32
}

type cachedEntry struct {
	coord []uint64
	entry Entry
	found bool
}

// Directory resolves chunk coordinates through a chunk B-tree. It is safe
// for concurrent use; parsed nodes and lookup results are shared by all
// callers for the lifetime of the Directory.
type Directory struct {
	r          *binary.Reader
	root       uint64
	chunkShape []uint64
	log        logrus.FieldLogger

	mu      sync.RWMutex
	nodes   map[uint64]*node
	entries map[uint64][]cachedEntry
}

// New creates a directory rooted at root for chunks of the given shape.
// A root equal to the undefined address describes a dataset with no
// written chunks. A nil logger uses the logrus standard logger.
func New(r *binary.Reader, root uint64, chunkShape []uint64, log logrus.FieldLogger) (*Directory, error) {
	if len(chunkShape) == 0 {
		return nil, fmt.Errorf("chunk directory: chunk shape has rank 0")
	}
	for i, c := range chunkShape {
		if c == 0 {
			return nil, fmt.Errorf("chunk directory: chunk dimension %d is zero", i)
		}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	shape := make([]uint64, len(chunkShape))
	copy(shape, chunkShape)

	return &Directory{
		r:          r,
		root:       root,
		chunkShape: shape,
		log:        log,
		nodes:      make(map[uint64]*node),
		entries:    make(map[uint64][]cachedEntry),
	}, nil
}

// Rank returns the number of dimensions of the chunk grid.
func (d *Directory) Rank() int {
	return len(d.chunkShape)
}

// Lookup returns the entry stored for coord. The boolean is false when the
// chunk was never written. Results are cached, so repeated and out-of-order
// lookups are cheap.
func (d *Directory) Lookup(coord []uint64) (Entry, bool, error) {
	if len(coord) != d.Rank() {
		return Entry{}, false, fmt.Errorf("chunk coordinate has rank %d, directory has rank %d", len(coord), d.Rank())
	}

	h := hash.Coord(coord)
	if e, found, ok := d.cached(h, coord); ok {
		return e, found, nil
	}

	e, found, err := d.lookup(coord)
	if err != nil {
		return Entry{}, false, err
	}
	d.store(h, coord, e, found)
	return e, found, nil
}

func (d *Directory) cached(h uint64, coord []uint64) (Entry, bool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.entries[h] {
		if hash.Equal(c.coord, coord) {
			return c.entry, c.found, true
		}
	}
	return Entry{}, false, false
}

func (d *Directory) store(h uint64, coord []uint64, e Entry, found bool) {
	key := make([]uint64, len(coord))
	copy(key, coord)

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.entries[h] {
		if hash.Equal(c.coord, key) {
			return
		}
	}
	d.entries[h] = append(d.entries[h], cachedEntry{coord: key, entry: e, found: found})
}

func (d *Directory) lookup(coord []uint64) (Entry, bool, error) {
	if d.r.IsUndefinedOffset(d.root) {
		return Entry{}, false, nil
	}

	rank := d.Rank()
	target := make([]uint64, rank)
	for i, c := range coord {
		hi, lo := bits.Mul64(c, d.chunkShape[i])
		if hi != 0 {
			// No element offset this large can be stored.
			return Entry{}, false, nil
		}
		target[i] = lo
	}

	visited := make(map[uint64]struct{})
	addr := d.root
	level := -1
	var lo, hi []uint64
	for {
		if _, seen := visited[addr]; seen {
			return Entry{}, false, corruptf(addr, "cycle detected")
		}
		visited[addr] = struct{}{}

		n, err := d.node(addr)
		if err != nil {
			return Entry{}, false, err
		}
		if level >= 0 && int(n.level) != level {
			return Entry{}, false, corruptf(addr, "level %d, expected %d", n.level, level)
		}
		if err := n.checkBounds(lo, hi, rank); err != nil {
			return Entry{}, false, err
		}

		if n.level == 0 {
			i := sort.Search(len(n.children), func(i int) bool {
				return compareOffsets(n.keys[i].Offsets, target, rank) >= 0
			})
			if i == len(n.children) || compareOffsets(n.keys[i].Offsets, target, rank) != 0 {
				return Entry{}, false, nil
			}
			k := n.keys[i]
			if k.Size == 0 || d.r.IsUndefinedOffset(n.children[i]) {
				return Entry{}, false, nil
			}
			e := Entry{
				Coord:      make([]uint64, rank),
				Address:    n.children[i],
				Size:       k.Size,
				FilterMask: k.FilterMask,
			}
			copy(e.Coord, coord)
			return e, true, nil
		}

		// Last child whose first key is not past the target.
		i := sort.Search(len(n.children), func(i int) bool {
			return compareOffsets(n.keys[i].Offsets, target, rank) > 0
		}) - 1
		if i < 0 {
			return Entry{}, false, nil
		}
		level = int(n.level) - 1
		addr = n.children[i]
		lo, hi = n.keys[i].Offsets, n.keys[i+1].Offsets
	}
}

func (d *Directory) node(addr uint64) (*node, error) {
	d.mu.RLock()
	n, ok := d.nodes[addr]
	d.mu.RUnlock()
	if ok {
		return n, nil
	}

	n, err := readNode(d.r, addr, d.Rank())
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if existing, ok := d.nodes[addr]; ok {
		n = existing
	} else {
		d.nodes[addr] = n
	}
	d.mu.Unlock()

	d.log.WithFields(logrus.Fields{
		"node":     fmt.Sprintf("0x%x", addr),
		"level":    n.level,
		"children": len(n.children),
	}).Debug("directory node loaded")
	return n, nil
}

// Entries walks the whole tree and returns every written chunk in key
// order. The context is checked between nodes.
func (d *Directory) Entries(ctx context.Context) ([]Entry, error) {
	if d.r.IsUndefinedOffset(d.root) {
		return nil, nil
	}

	type frame struct {
		addr   uint64
		level  int
		lo, hi []uint64
	}

	rank := d.Rank()
	visited := make(map[uint64]struct{})
	stack := []frame{{addr: d.root, level: -1}}
	var out []Entry
	var prev []uint64

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[f.addr]; seen {
			return nil, corruptf(f.addr, "cycle detected")
		}
		visited[f.addr] = struct{}{}

		n, err := d.node(f.addr)
		if err != nil {
			return nil, err
		}
		if f.level >= 0 && int(n.level) != f.level {
			return nil, corruptf(f.addr, "level %d, expected %d", n.level, f.level)
		}
		if err := n.checkBounds(f.lo, f.hi, rank); err != nil {
			return nil, err
		}

		if n.level > 0 {
			// Push in reverse so children pop in key order.
			for i := len(n.children) - 1; i >= 0; i-- {
				stack = append(stack, frame{
					addr:  n.children[i],
					level: int(n.level) - 1,
					lo:    n.keys[i].Offsets,
					hi:    n.keys[i+1].Offsets,
				})
			}
			continue
		}

		for i, child := range n.children {
			k := n.keys[i]
			if prev != nil && compareOffsets(prev, k.Offsets, rank) >= 0 {
				return nil, corruptf(f.addr, "key %d is not greater than the last key of the previous leaf", i)
			}
			prev = k.Offsets
			if k.Size == 0 || d.r.IsUndefinedOffset(child) {
				continue
			}
			coord := make([]uint64, rank)
			for j := range coord {
				if k.Offsets[j]%d.chunkShape[j] != 0 {
					return nil, corruptf(f.addr, "key %d offset %d is not aligned to chunk size %d", i, k.Offsets[j], d.chunkShape[j])
				}
				coord[j] = k.Offsets[j] / d.chunkShape[j]
			}
			out = append(out, Entry{Coord: coord, Address: child, Size: k.Size, FilterMask: k.FilterMask})
		}
	}
	return out, nil
}
