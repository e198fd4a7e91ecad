package materialize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-chunkio/internal/binary"
	"github.com/robert-malhotra/go-chunkio/internal/dtype"
	"github.com/robert-malhotra/go-chunkio/internal/filter"
	"github.com/robert-malhotra/go-chunkio/internal/layout"
	"github.com/robert-malhotra/go-chunkio/section"
)

// Config controls how reads are executed.
type Config struct {
	// FillValue is one element in StoredOrder used for chunks that were
	// never written. Nil means all zero bytes.
	FillValue []byte

	// StoredOrder is the byte order of elements on disk.
	StoredOrder dtype.Order

	// NativeOrder is the byte order of the returned buffer.
	NativeOrder dtype.Order

	// Concurrency is the number of chunks materialized at once. Values
	// below 2 read chunks one at a time in row-major order.
	Concurrency int

	// Cache, if set, keeps decoded chunks between reads.
	Cache *ChunkCache

	// Logger receives debug output. Nil uses the logrus standard logger.
	Logger logrus.FieldLogger
}

// Materializer reads sections of one array.
type Materializer struct {
	layout     layout.Layout
	src        *binary.Reader
	pipeline   *filter.Pipeline
	elemSize   int
	srcStrides []uint64
	chunkBytes uint64
	fill       []byte
	cfg        Config
	log        logrus.FieldLogger
}

// New creates a materializer for l whose chunk bytes come from src and
// are decoded by p. A nil pipeline means chunks are stored unfiltered.
func New(l layout.Layout, src *binary.Reader, p *filter.Pipeline, cfg Config) (*Materializer, error) {
	elemSize := l.ElementSize()
	if cfg.FillValue != nil && len(cfg.FillValue) != elemSize {
		return nil, fmt.Errorf("%w: fill value has %d bytes, element size is %d", layout.ErrInvalidDescriptor, len(cfg.FillValue), elemSize)
	}
	if p == nil {
		p = filter.NewPipeline(nil, elemSize)
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	chunkShape := l.ChunkShape()
	chunkBytes := uint64(elemSize)
	for _, c := range chunkShape {
		chunkBytes *= c
	}

	m := &Materializer{
		layout:     l,
		src:        src,
		pipeline:   p,
		elemSize:   elemSize,
		srcStrides: rowMajorStrides(chunkShape),
		chunkBytes: chunkBytes,
		cfg:        cfg,
		log:        log,
	}
	for _, b := range cfg.FillValue {
		if b != 0 {
			m.fill = append([]byte(nil), cfg.FillValue...)
			break
		}
	}
	return m, nil
}

// Read returns the elements selected by s in row-major order of the
// section, converted to the native byte order.
func (m *Materializer) Read(ctx context.Context, s section.Section) ([]byte, error) {
	ix, err := m.layout.Indexer(s)
	if err != nil {
		return nil, err
	}

	hi, n := bits.Mul64(ix.Total(), uint64(m.elemSize))
	if hi != 0 || n > math.MaxInt {
		return nil, fmt.Errorf("%w: %d elements of %d bytes do not fit in memory", section.ErrInvalidSection, ix.Total(), m.elemSize)
	}
	out := make([]byte, n)

	if m.cfg.Concurrency > 1 {
		err = m.runParallel(ctx, ix, out)
	} else {
		err = m.runSequential(ctx, ix, out)
	}
	if err != nil {
		return nil, err
	}

	dtype.Convert(out, m.elemSize, m.cfg.StoredOrder, m.cfg.NativeOrder)

	m.log.WithFields(logrus.Fields{
		"section":  s.String(),
		"elements": ix.Total(),
		"chunks":   ix.Visited() - ix.Skipped(),
		"skipped":  ix.Skipped(),
	}).Debug("section read")
	return out, nil
}

func (m *Materializer) runSequential(ctx context.Context, ix *layout.Indexer, out []byte) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, ok := ix.Next()
		if !ok {
			return nil
		}
		if err := m.transfer(out, t); err != nil {
			return err
		}
	}
}

func (m *Materializer) runParallel(ctx context.Context, ix *layout.Indexer, out []byte) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)

	for gctx.Err() == nil {
		t, ok := ix.Next()
		if !ok {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return m.transfer(out, t)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (m *Materializer) transfer(out []byte, t layout.Transfer) error {
	loc, found, err := m.layout.Locate(t.Chunk)
	if err != nil {
		return fmt.Errorf("locating chunk %v: %w", t.Chunk, err)
	}
	if !found {
		m.log.WithField("chunk", t.Chunk).Debug("chunk not written, using fill value")
		if m.fill != nil {
			fillTransfer(out, m.fill, t)
		}
		return nil
	}

	if loc.Direct {
		return m.copyDirect(out, t, loc)
	}

	data, err := m.chunk(t.Chunk, loc)
	if err != nil {
		return &ChunkError{Coord: t.Chunk, Err: err}
	}
	copyTransfer(out, data, t, m.srcStrides, 0, m.elemSize)
	return nil
}

// chunk returns the decoded bytes of a stored chunk.
func (m *Materializer) chunk(coord []uint64, loc layout.Location) ([]byte, error) {
	if data, ok := m.cfg.Cache.Get(coord); ok {
		m.log.WithField("chunk", coord).Debug("chunk cache hit")
		return data, nil
	}

	m.log.WithFields(logrus.Fields{
		"chunk":   coord,
		"address": fmt.Sprintf("0x%x", loc.Address),
		"size":    loc.Size,
		"mask":    loc.FilterMask,
	}).Debug("reading chunk")

	raw, err := m.src.ReadRange(loc.Address, loc.Size)
	if err != nil {
		return nil, fmt.Errorf("reading %d bytes at 0x%x: %w", loc.Size, loc.Address, err)
	}
	data := raw
	if !m.pipeline.Empty() {
		data, err = m.pipeline.DecodeLimit(raw, loc.FilterMask, int(min(m.chunkBytes, math.MaxInt)))
		if errors.Is(err, filter.ErrTooLarge) {
			return nil, fmt.Errorf("%w: %w", ErrCorruptChunk, err)
		}
		if err != nil {
			return nil, err
		}
	}
	if uint64(len(data)) != m.chunkBytes {
		return nil, fmt.Errorf("%w: decoded to %d bytes, want %d", ErrCorruptChunk, len(data), m.chunkBytes)
	}

	m.cfg.Cache.Put(coord, data)
	return data, nil
}

// copyDirect reads only the byte span of an unfiltered block that t needs.
func (m *Materializer) copyDirect(out []byte, t layout.Transfer, loc layout.Location) error {
	es := uint64(m.elemSize)
	first, last := span(t, m.srcStrides)
	length := (last - first + 1) * es
	if (last+1)*es > loc.Size {
		return &ChunkError{Coord: t.Chunk, Err: fmt.Errorf("%w: element %d beyond %d stored bytes", ErrCorruptChunk, last, loc.Size)}
	}

	m.log.WithFields(logrus.Fields{
		"address": fmt.Sprintf("0x%x", loc.Address+first*es),
		"size":    length,
	}).Debug("reading contiguous span")

	raw, err := m.src.ReadRange(loc.Address+first*es, length)
	if err != nil {
		return &ChunkError{Coord: t.Chunk, Err: fmt.Errorf("reading %d bytes at 0x%x: %w", length, loc.Address+first*es, err)}
	}
	copyTransfer(out, raw, t, m.srcStrides, first, m.elemSize)
	return nil
}
