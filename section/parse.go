package section

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a section string such as "(1:20,:,3,10:20:2)". Bounds are
// inclusive. A ":" selects the whole dimension and needs shape to resolve;
// shape may be nil when the string has no ":" selectors. When shape is
// given, the result is also checked against it.
func Parse(spec string, shape []uint64) (Section, error) {
	tokens := strings.FieldsFunc(spec, func(r rune) bool {
		return r == '(' || r == ')' || r == ','
	})
	if len(tokens) == 0 {
		return Section{}, fmt.Errorf("%w: empty section string %q", ErrInvalidSection, spec)
	}
	if shape != nil && len(shape) != len(tokens) {
		return Section{}, fmt.Errorf("%w: %q has rank %d, array rank %d", ErrInvalidSection, spec, len(tokens), len(shape))
	}

	rs := make([]Range, len(tokens))
	for i, tok := range tokens {
		r, err := parseRange(strings.TrimSpace(tok), i, shape)
		if err != nil {
			return Section{}, fmt.Errorf("%w: selector %q in %q: %v", ErrInvalidSection, tok, spec, err)
		}
		rs[i] = r
	}

	s, err := New(rs...)
	if err != nil {
		return Section{}, err
	}
	if shape != nil {
		if err := s.CheckInRange(shape); err != nil {
			return Section{}, err
		}
	}
	return s, nil
}

// MustParse is like Parse but panics on error.
func MustParse(spec string, shape []uint64) Section {
	s, err := Parse(spec, shape)
	if err != nil {
		panic(err)
	}
	return s
}

func parseRange(tok string, dim int, shape []uint64) (Range, error) {
	if tok == ":" {
		if shape == nil {
			return Range{}, fmt.Errorf("whole-dimension selector needs an array shape")
		}
		return NewRange(0, shape[dim], 1)
	}

	parts := strings.Split(tok, ":")
	nums := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return Range{}, err
		}
		nums[i] = n
	}

	switch len(nums) {
	case 1:
		return NewRange(nums[0], 1, 1)
	case 2:
		return NewRangeInclusive(nums[0], nums[1], 1)
	case 3:
		return NewRangeInclusive(nums[0], nums[1], nums[2])
	default:
		return Range{}, fmt.Errorf("too many ':' separators")
	}
}
