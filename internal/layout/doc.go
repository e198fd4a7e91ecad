// Package layout maps a section of an array onto its physical storage.
//
// Two layouts exist. [Regular] splits the array into a grid of equally
// shaped chunks located through a chunk directory; the last chunk along a
// dimension may extend past the array and is clipped. [Contiguous] stores
// the whole array as one row-major block and behaves as a single chunk
// whose shape equals the array shape, at coordinate (0, ..., 0).
//
// # Transfers
//
// [Indexer] turns a section into a lazy sequence of [Transfer] values, one
// per chunk that holds at least one selected element. A Transfer names the
// chunk, the selected elements in chunk-local coordinates and where they
// land in the row-major output buffer. Chunks that the section's bounding
// box touches but whose selected indices all fall between strides are
// skipped, so a chunk is never read for nothing.
//
// Indexing is pure computation; reading and decoding chunk bytes is left
// to the caller.
package layout
