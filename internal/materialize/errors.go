package materialize

import (
	"errors"
	"fmt"
)

// ErrCorruptChunk is returned when a chunk decodes to the wrong size.
var ErrCorruptChunk = errors.New("corrupt chunk")

// ChunkError reports a failure to read or decode one chunk.
type ChunkError struct {
	Coord []uint64
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %v: %v", e.Coord, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
