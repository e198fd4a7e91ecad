package section

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidSection is returned for malformed ranges and sections:
	// zero count or stride, rank mismatch, unparsable section strings.
	ErrInvalidSection = errors.New("invalid section")

	// ErrOutOfRange is returned when a range selects indices beyond the
	// extent of the dimension it is applied to.
	ErrOutOfRange = errors.New("section out of range")
)

// RangeError describes a range that does not fit its dimension.
type RangeError struct {
	Dim    int
	Range  Range
	Extent uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("dimension %d: range %s exceeds extent %d", e.Dim, e.Range, e.Extent)
}

func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}

// Range selects Count indices along one dimension, starting at Start and
// advancing by Stride.
type Range struct {
	Start  uint64
	Count  uint64
	Stride uint64
}

// NewRange validates and returns a Range.
func NewRange(start, count, stride uint64) (Range, error) {
	if count == 0 {
		return Range{}, fmt.Errorf("%w: count must be positive", ErrInvalidSection)
	}
	if stride == 0 {
		return Range{}, fmt.Errorf("%w: stride must be positive", ErrInvalidSection)
	}
	if count-1 > (math.MaxUint64-start)/stride {
		return Range{}, fmt.Errorf("%w: range %d+%d*%d overflows", ErrInvalidSection, start, count-1, stride)
	}
	return Range{Start: start, Count: count, Stride: stride}, nil
}

// NewRangeInclusive returns the Range selecting first..last (inclusive)
// with the given stride. last is rounded down onto the stride grid.
func NewRangeInclusive(first, last, stride uint64) (Range, error) {
	if stride == 0 {
		return Range{}, fmt.Errorf("%w: stride must be positive", ErrInvalidSection)
	}
	if last < first {
		return Range{}, fmt.Errorf("%w: last %d < first %d", ErrInvalidSection, last, first)
	}
	return NewRange(first, (last-first)/stride+1, stride)
}

// MustRange is like NewRange but panics on invalid input.
func MustRange(start, count, stride uint64) Range {
	r, err := NewRange(start, count, stride)
	if err != nil {
		panic(err)
	}
	return r
}

// Last returns the largest index selected by the range.
func (r Range) Last() uint64 {
	return r.Start + (r.Count-1)*r.Stride
}

// Element returns the i-th selected index.
func (r Range) Element(i uint64) uint64 {
	return r.Start + i*r.Stride
}

// Index returns the position of global index g within the range's
// enumeration, or false if g is not selected.
func (r Range) Index(g uint64) (uint64, bool) {
	if !r.Contains(g) {
		return 0, false
	}
	return (g - r.Start) / r.Stride, true
}

// Contains reports whether g is one of the selected indices.
func (r Range) Contains(g uint64) bool {
	if r.Count == 0 || r.Stride == 0 {
		return false
	}
	if g < r.Start || g > r.Last() {
		return false
	}
	return (g-r.Start)%r.Stride == 0
}

// Intersect returns the indices of r that fall inside [lo, hi), expressed
// in the same coordinate space and with the same stride as r.
// It returns false if no selected index lies in the interval.
func (r Range) Intersect(lo, hi uint64) (Range, bool) {
	if hi <= lo || r.Count == 0 {
		return Range{}, false
	}
	last := r.Last()
	if last < lo || r.Start >= hi {
		return Range{}, false
	}

	first := r.Start
	if first < lo {
		k := (lo - r.Start + r.Stride - 1) / r.Stride
		first = r.Start + k*r.Stride
	}

	end := last
	if hi-1 < end {
		end = hi - 1
	}
	if first > end {
		return Range{}, false
	}

	return Range{Start: first, Count: (end-first)/r.Stride + 1, Stride: r.Stride}, true
}

// Compose interprets sub as positions within r's enumeration and returns
// the equivalent range in r's coordinate space.
func (r Range) Compose(sub Range) (Range, error) {
	if sub.Count == 0 || sub.Stride == 0 {
		return Range{}, fmt.Errorf("%w: %s", ErrInvalidSection, sub)
	}
	if sub.Last() >= r.Count {
		return Range{}, &RangeError{Dim: -1, Range: sub, Extent: r.Count}
	}
	return Range{
		Start:  r.Element(sub.Start),
		Count:  sub.Count,
		Stride: r.Stride * sub.Stride,
	}, nil
}

// Compact divides start by the stride and drops the stride.
func (r Range) Compact() Range {
	return Range{Start: r.Start / r.Stride, Count: r.Count, Stride: 1}
}

// String formats the range as first:last or first:last:stride.
func (r Range) String() string {
	if r.Count == 0 {
		return "empty"
	}
	if r.Stride == 1 {
		return fmt.Sprintf("%d:%d", r.Start, r.Last())
	}
	return fmt.Sprintf("%d:%d:%d", r.Start, r.Last(), r.Stride)
}
