// Package dtype handles the element-level representation of array data:
// the byte order elements are stored in, swapping between orders and
// rendering elements as numbers.
package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Order is the byte order of stored or requested elements.
type Order uint8

const (
	LittleEndian Order = iota
	BigEndian
)

func (o Order) String() string {
	if o == BigEndian {
		return "big"
	}
	return "little"
}

// ByteOrder returns the encoding/binary order for o.
func (o Order) ByteOrder() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// NativeOrder returns the byte order of the host.
func NativeOrder() Order {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return LittleEndian
	}
	return BigEndian
}

// ParseOrder parses "little", "big" or "native".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "little", "le":
		return LittleEndian, nil
	case "big", "be":
		return BigEndian, nil
	case "native", "":
		return NativeOrder(), nil
	default:
		return 0, fmt.Errorf("unknown byte order %q", s)
	}
}

// SwapInPlace reverses the bytes of every elemSize-byte element of data.
func SwapInPlace(data []byte, elemSize int) {
	if elemSize <= 1 {
		return
	}
	for off := 0; off+elemSize <= len(data); off += elemSize {
		elem := data[off : off+elemSize]
		for i, j := 0, elemSize-1; i < j; i, j = i+1, j-1 {
			elem[i], elem[j] = elem[j], elem[i]
		}
	}
}

// Convert rewrites data from one order to another in place.
func Convert(data []byte, elemSize int, from, to Order) {
	if from != to {
		SwapInPlace(data, elemSize)
	}
}

// Kind selects how an element is rendered.
type Kind uint8

const (
	Unsigned Kind = iota
	Signed
	Float
	Hex
)

// ParseKind parses "uint", "int", "float" or "hex".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "uint", "unsigned", "":
		return Unsigned, nil
	case "int", "signed":
		return Signed, nil
	case "float":
		return Float, nil
	case "hex":
		return Hex, nil
	default:
		return 0, fmt.Errorf("unknown element kind %q", s)
	}
}

// Format renders one element stored in order. Sizes other than 1, 2, 4
// and 8 bytes, and float sizes other than 4 and 8, are rendered as hex.
func Format(elem []byte, order Order, kind Kind) string {
	bo := order.ByteOrder()
	var u uint64
	switch len(elem) {
	case 1:
		u = uint64(elem[0])
	case 2:
		u = uint64(bo.Uint16(elem))
	case 4:
		u = uint64(bo.Uint32(elem))
	case 8:
		u = bo.Uint64(elem)
	default:
		kind = Hex
	}

	switch kind {
	case Signed:
		shift := uint(64 - 8*len(elem))
		return strconv.FormatInt(int64(u<<shift)>>shift, 10)
	case Float:
		switch len(elem) {
		case 4:
			return strconv.FormatFloat(float64(math.Float32frombits(uint32(u))), 'g', -1, 32)
		case 8:
			return strconv.FormatFloat(math.Float64frombits(u), 'g', -1, 64)
		}
		return fmt.Sprintf("%x", elem)
	case Hex:
		return fmt.Sprintf("%x", elem)
	default:
		return strconv.FormatUint(u, 10)
	}
}
