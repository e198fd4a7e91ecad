// Package alloc hands out non-overlapping byte ranges when laying out a
// synthetic chunked file: chunk payloads and directory nodes are placed
// one after another past a fixed base address.
package alloc

import (
	"fmt"
	"sort"
	"sync"
)

// Allocator is an append-only space allocator. It is safe for concurrent use.
type Allocator struct {
	mu sync.Mutex

	base uint64
	eof  uint64

	allocations []Allocation
	stats       Stats
}

// Allocation records one allocated range.
type Allocation struct {
	Addr uint64
	Size uint64
	Tag  string
}

// Stats summarizes the allocations made so far.
type Stats struct {
	Count        uint64
	Bytes        uint64
	LargestAlloc uint64
}

// New creates an allocator whose first allocation starts at base.
func New(base uint64) *Allocator {
	return &Allocator{base: base, eof: base}
}

// AllocTagged reserves size bytes at the current end of file. The tag is
// recorded for diagnostics.
func (a *Allocator) AllocTagged(size uint64, tag string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocLocked(size, tag)
}

// AllocAligned reserves size bytes starting at a multiple of alignment.
func (a *Allocator) AllocAligned(size, alignment uint64, tag string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if alignment > 1 {
		if rem := a.eof % alignment; rem != 0 {
			a.eof += alignment - rem
		}
	}
	return a.allocLocked(size, tag)
}

func (a *Allocator) allocLocked(size uint64, tag string) uint64 {
	addr := a.eof
	if size == 0 {
		return addr
	}
	a.eof += size

	a.allocations = append(a.allocations, Allocation{Addr: addr, Size: size, Tag: tag})
	a.stats.Count++
	a.stats.Bytes += size
	a.stats.LargestAlloc = max(a.stats.LargestAlloc, size)
	return addr
}

// EOFAddr returns the next address that would be allocated.
func (a *Allocator) EOFAddr() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

// Stats returns a snapshot of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Allocations returns a copy of every allocation in address order.
func (a *Allocator) Allocations() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Allocation, len(a.allocations))
	copy(out, a.allocations)
	return out
}

// Validate checks that no two allocations overlap and that all of them lie
// within [base, eof).
func (a *Allocator) Validate() error {
	allocs := a.Allocations()
	eof := a.EOFAddr()

	sort.Slice(allocs, func(i, j int) bool { return allocs[i].Addr < allocs[j].Addr })
	for i, al := range allocs {
		if al.Addr < a.base || al.Addr+al.Size > eof {
			return fmt.Errorf("allocation %q at 0x%x size %d is outside [0x%x, 0x%x)", al.Tag, al.Addr, al.Size, a.base, eof)
		}
		if i > 0 {
			prev := allocs[i-1]
			if prev.Addr+prev.Size > al.Addr {
				return fmt.Errorf("allocations %q at 0x%x and %q at 0x%x overlap", prev.Tag, prev.Addr, al.Tag, al.Addr)
			}
		}
	}
	return nil
}
