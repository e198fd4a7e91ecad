// Package section implements the selection algebra used to describe reads
// from N-dimensional arrays.
//
// A [Range] selects the indices start, start+stride, ..., start+(count-1)*stride
// along one dimension. A [Section] is an ordered list of ranges, one per
// dimension, and selects the hyperslab formed by their Cartesian product.
//
// # Chunk Intersection
//
// Chunked storage tiles an array with fixed-shape chunks. [Range.Intersect]
// clips a range to the half-open interval covered by one chunk without
// changing its stride, and [Section.Chunks] enumerates the coordinates of all
// chunks touched by a section in row-major order (last dimension fastest):
//
//	s, _ := section.New(section.MustRange(3, 5, 7))
//	it, _ := s.Chunks([]uint64{10})
//	for coord, ok := it.Next(); ok; coord, ok = it.Next() {
//		// coord = [0], [1], [2], [3]
//	}
//
// # Section Strings
//
// [Parse] accepts the compact notation used by array tools, with inclusive
// bounds:
//
//	(1:20,:,3,10:20:2)
//
// where ":" selects a whole dimension, a single number selects one index,
// and "first:last:stride" selects a strided run.
package section
