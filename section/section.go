package section

import (
	"fmt"
	"math"
	"strings"
)

// Section is an N-dimensional hyperslab: one Range per dimension.
// Sections are immutable once constructed.
type Section struct {
	ranges []Range
}

// New builds a Section from validated ranges.
func New(ranges ...Range) (Section, error) {
	if len(ranges) == 0 {
		return Section{}, fmt.Errorf("%w: rank must be at least 1", ErrInvalidSection)
	}
	rs := make([]Range, len(ranges))
	for i, r := range ranges {
		v, err := NewRange(r.Start, r.Count, r.Stride)
		if err != nil {
			return Section{}, fmt.Errorf("dimension %d: %w", i, err)
		}
		rs[i] = v
	}
	return Section{ranges: rs}, nil
}

// FromShape returns the section covering an entire array of the given shape.
func FromShape(shape []uint64) (Section, error) {
	rs := make([]Range, len(shape))
	for i, n := range shape {
		rs[i] = Range{Start: 0, Count: n, Stride: 1}
	}
	return New(rs...)
}

// FromOriginShape builds a section from per-dimension origin, count and
// stride slices. A nil stride means stride 1 everywhere.
func FromOriginShape(origin, count, stride []uint64) (Section, error) {
	if len(origin) != len(count) || (stride != nil && len(stride) != len(count)) {
		return Section{}, fmt.Errorf("%w: origin/count/stride rank mismatch (%d/%d/%d)",
			ErrInvalidSection, len(origin), len(count), len(stride))
	}
	rs := make([]Range, len(count))
	for i := range count {
		s := uint64(1)
		if stride != nil {
			s = stride[i]
		}
		rs[i] = Range{Start: origin[i], Count: count[i], Stride: s}
	}
	return New(rs...)
}

// Rank returns the number of dimensions.
func (s Section) Rank() int {
	return len(s.ranges)
}

// Range returns the range for dimension i.
func (s Section) Range(i int) Range {
	return s.ranges[i]
}

// Ranges returns a copy of the per-dimension ranges.
func (s Section) Ranges() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// Shape returns the number of selected indices per dimension.
func (s Section) Shape() []uint64 {
	out := make([]uint64, len(s.ranges))
	for i, r := range s.ranges {
		out[i] = r.Count
	}
	return out
}

// Origin returns the first selected index per dimension.
func (s Section) Origin() []uint64 {
	out := make([]uint64, len(s.ranges))
	for i, r := range s.ranges {
		out[i] = r.Start
	}
	return out
}

// Strides returns the stride per dimension.
func (s Section) Strides() []uint64 {
	out := make([]uint64, len(s.ranges))
	for i, r := range s.ranges {
		out[i] = r.Stride
	}
	return out
}

// Size returns the total number of selected elements, the product of the
// per-dimension counts. It saturates at math.MaxUint64.
func (s Section) Size() uint64 {
	if len(s.ranges) == 0 {
		return 0
	}
	n := uint64(1)
	for _, r := range s.ranges {
		if r.Count != 0 && n > math.MaxUint64/r.Count {
			return math.MaxUint64
		}
		n *= r.Count
	}
	return n
}

// IsStrided reports whether any dimension has a stride other than 1.
func (s Section) IsStrided() bool {
	for _, r := range s.ranges {
		if r.Stride != 1 {
			return true
		}
	}
	return false
}

// CheckInRange verifies that the section has the same rank as shape and
// that every range lies within its dimension.
func (s Section) CheckInRange(shape []uint64) error {
	if len(shape) != len(s.ranges) {
		return fmt.Errorf("%w: section rank %d, array rank %d", ErrInvalidSection, len(s.ranges), len(shape))
	}
	for i, r := range s.ranges {
		if r.Count == 0 || r.Stride == 0 {
			return fmt.Errorf("%w: dimension %d has empty range", ErrInvalidSection, i)
		}
		if r.Last() >= shape[i] {
			return &RangeError{Dim: i, Range: r, Extent: shape[i]}
		}
	}
	return nil
}

// Compose interprets want as a section relative to s and returns the
// equivalent section in s's coordinate space.
func (s Section) Compose(want Section) (Section, error) {
	if want.Rank() != s.Rank() {
		return Section{}, fmt.Errorf("%w: rank %d composed with rank %d", ErrInvalidSection, s.Rank(), want.Rank())
	}
	rs := make([]Range, len(s.ranges))
	for i, base := range s.ranges {
		r, err := base.Compose(want.ranges[i])
		if err != nil {
			if re, ok := err.(*RangeError); ok {
				re.Dim = i
			}
			return Section{}, err
		}
		rs[i] = r
	}
	return Section{ranges: rs}, nil
}

// Compact returns a section whose ranges have been compacted.
func (s Section) Compact() Section {
	rs := make([]Range, len(s.ranges))
	for i, r := range s.ranges {
		rs[i] = r.Compact()
	}
	return Section{ranges: rs}
}

// Contains reports whether every index selected by o is also selected by s.
func (s Section) Contains(o Section) bool {
	if o.Rank() != s.Rank() {
		return false
	}
	for i, r := range s.ranges {
		or := o.ranges[i]
		if !r.Contains(or.Start) || !r.Contains(or.Last()) {
			return false
		}
		if or.Count > 1 && or.Stride%r.Stride != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether both sections select the same ranges.
func (s Section) Equal(o Section) bool {
	if o.Rank() != s.Rank() {
		return false
	}
	for i, r := range s.ranges {
		if r != o.ranges[i] {
			return false
		}
	}
	return true
}

// String formats the section in the notation accepted by Parse.
func (s Section) String() string {
	parts := make([]string, len(s.ranges))
	for i, r := range s.ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
