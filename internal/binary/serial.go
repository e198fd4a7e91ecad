package binary

import (
	"io"
	"sync"
)

// SerialReaderAt serializes ReadAt calls on a source that cannot serve
// concurrent positioned reads, such as a reader backed by a single seek
// cursor.
type SerialReaderAt struct {
	mu sync.Mutex
	r  io.ReaderAt
}

// NewSerialReaderAt wraps r.
func NewSerialReaderAt(r io.ReaderAt) *SerialReaderAt {
	return &SerialReaderAt{r: r}
}

// ReadAt implements io.ReaderAt.
func (s *SerialReaderAt) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.ReadAt(p, off)
}

// SeekReaderAt adapts an io.ReadSeeker to io.ReaderAt. It is not safe for
// concurrent use on its own; wrap it in a SerialReaderAt.
type SeekReaderAt struct {
	rs io.ReadSeeker
}

// NewSeekReaderAt wraps rs.
func NewSeekReaderAt(rs io.ReadSeeker) *SeekReaderAt {
	return &SeekReaderAt{rs: rs}
}

// ReadAt implements io.ReaderAt.
func (s *SeekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(s.rs, p)
}
