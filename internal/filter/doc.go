// Package filter implements the chunk filter pipeline.
//
// Chunks may be transformed by an ordered list of filters when written.
// Reading applies the inverse of each filter in reverse order. Each chunk
// carries a filter mask; if bit i is set, filter i was skipped for that
// chunk and is skipped again on decode.
//
// # Supported Filters
//
//   - Deflate (ID 1): zlib compression via [Deflate].
//   - Shuffle (ID 2): byte shuffling via [Shuffle].
//   - Fletcher32 (ID 3): trailing checksum via [Fletcher32Filter].
//   - LZ4 (ID 32004): block-framed LZ4 via [LZ4].
//   - Zstandard (ID 32015): via [Zstd].
//
// Any other filter is recorded in the [Pipeline] but cannot be decoded.
// The failure is reported with [ErrUnsupportedFilter] only when a chunk
// that actually needs the filter is read, so chunks that skip it through
// their mask stay readable. Optional filters are not skipped silently:
// returning undecoded bytes would hand garbage to the caller.
//
// Every filter here also implements [Encoder], which the test fixtures use
// to produce filtered chunks.
package filter
