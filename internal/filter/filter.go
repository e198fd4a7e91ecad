package filter

import (
	"errors"
	"fmt"
)

// Filter identifiers.
const (
	IDDeflate     uint16 = 1
	IDShuffle     uint16 = 2
	IDFletcher32  uint16 = 3
	IDSZIP        uint16 = 4
	IDNBit        uint16 = 5
	IDScaleOffset uint16 = 6
	IDLZ4         uint16 = 32004
	IDZstd        uint16 = 32015
)

// FlagOptional marks a filter that a writer may skip for individual chunks.
const FlagOptional uint16 = 0x0001

var (
	// ErrUnsupportedFilter is returned when a chunk needs a filter that has
	// no decoder.
	ErrUnsupportedFilter = errors.New("unsupported filter")

	// ErrChecksum is returned when a checksum filter detects corruption.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrTooLarge is returned when decoded data would exceed the size the
	// caller allows.
	ErrTooLarge = errors.New("decoded data too large")
)

// Info describes one entry of a dataset's filter list.
type Info struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether the filter is marked optional.
func (i Info) IsOptional() bool {
	return i.Flags&FlagOptional != 0
}

func (i Info) String() string {
	name := i.Name
	if name == "" {
		name = filterNames[i.ID]
	}
	if name == "" {
		return fmt.Sprintf("filter %d", i.ID)
	}
	return fmt.Sprintf("%s (ID %d)", name, i.ID)
}

// Filter is the decode side of a filter.
type Filter interface {
	// ID returns the filter identifier.
	ID() uint16

	// Decode transforms encoded data to decoded form.
	Decode(input []byte) ([]byte, error)
}

// LimitedDecoder is implemented by filters that can stop decoding once the
// output passes limit bytes.
type LimitedDecoder interface {
	DecodeLimit(input []byte, limit int) ([]byte, error)
}

// Encoder is implemented by filters that can also produce encoded data.
type Encoder interface {
	Encode(input []byte) ([]byte, error)
}

// Registry maps filter IDs to filter constructors.
var Registry = map[uint16]func([]uint32) Filter{
	IDDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	IDShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	IDFletcher32: func(cd []uint32) Filter { return NewFletcher32(cd) },
	IDLZ4:        func(cd []uint32) Filter { return NewLZ4(cd) },
	IDZstd:       func(cd []uint32) Filter { return NewZstd(cd) },
}

var filterNames = map[uint16]string{
	IDDeflate:     "deflate",
	IDShuffle:     "shuffle",
	IDFletcher32:  "fletcher32",
	IDSZIP:        "szip",
	IDNBit:        "nbit",
	IDScaleOffset: "scaleoffset",
	IDLZ4:         "lz4",
	IDZstd:        "zstd",
}

// ParseName maps a filter name to its identifier.
func ParseName(name string) (uint16, bool) {
	for id, n := range filterNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// New creates a filter from an Info. Filters without a decoder yield an
// error wrapping ErrUnsupportedFilter.
func New(info Info) (Filter, error) {
	constructor, ok := Registry[info.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, info)
	}
	return constructor(info.ClientData), nil
}
