package fixture

import (
	"io"
	"sync/atomic"
)

// CountingReaderAt counts the reads issued against a source.
type CountingReaderAt struct {
	r     io.ReaderAt
	calls atomic.Int64
	bytes atomic.Int64
}

// NewCountingReaderAt wraps r.
func NewCountingReaderAt(r io.ReaderAt) *CountingReaderAt {
	return &CountingReaderAt{r: r}
}

// ReadAt implements io.ReaderAt.
func (c *CountingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	c.calls.Add(1)
	c.bytes.Add(int64(len(p)))
	return c.r.ReadAt(p, off)
}

// Calls returns the number of ReadAt calls so far.
func (c *CountingReaderAt) Calls() int64 {
	return c.calls.Load()
}

// Bytes returns the number of bytes requested so far.
func (c *CountingReaderAt) Bytes() int64 {
	return c.bytes.Load()
}

// Reset zeroes the counters.
func (c *CountingReaderAt) Reset() {
	c.calls.Store(0)
	c.bytes.Store(0)
}

// FailingReaderAt fails every read with Err.
type FailingReaderAt struct {
	Err error
}

// ReadAt implements io.ReaderAt.
func (f FailingReaderAt) ReadAt([]byte, int64) (int, error) {
	return 0, f.Err
}
