// Package hash computes cache keys for chunk coordinates.
package hash

import "github.com/cespare/xxhash/v2"

// Coord computes the xxHash64 of a chunk coordinate, encoded as
// little-endian 64-bit words.
func Coord(coord []uint64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, v := range coord {
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Equal reports whether two coordinates are identical. Cache entries keyed
// by Coord compare the stored coordinate to rule out collisions.
func Equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
