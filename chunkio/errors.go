// Package chunkio reads hyperslabs of chunked, optionally filtered,
// N-dimensional arrays from any io.ReaderAt.
package chunkio

import (
	"errors"

	"github.com/robert-malhotra/go-chunkio/internal/btree"
	"github.com/robert-malhotra/go-chunkio/internal/filter"
	"github.com/robert-malhotra/go-chunkio/internal/layout"
	"github.com/robert-malhotra/go-chunkio/internal/materialize"
	"github.com/robert-malhotra/go-chunkio/section"
)

// Common errors
var (
	ErrInvalidSection    = section.ErrInvalidSection
	ErrOutOfRange        = section.ErrOutOfRange
	ErrInvalidDescriptor = layout.ErrInvalidDescriptor
	ErrCorruptDirectory  = btree.ErrCorruptDirectory
	ErrCorruptChunk      = materialize.ErrCorruptChunk
	ErrUnsupportedFilter = filter.ErrUnsupportedFilter
	ErrChecksum          = filter.ErrChecksum
	ErrDatasetUnusable   = errors.New("dataset unusable after directory corruption")
	ErrNotChunked        = errors.New("dataset is not chunked")
	ErrClosed            = errors.New("dataset is closed")
)

// RangeError reports a section range that does not fit its dimension.
type RangeError = section.RangeError

// ChunkError reports a failure to read or decode one chunk. Coord is the
// chunk grid coordinate.
type ChunkError = materialize.ChunkError
