package chunkio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-chunkio/internal/binary"
	"github.com/robert-malhotra/go-chunkio/internal/btree"
	"github.com/robert-malhotra/go-chunkio/internal/dtype"
	"github.com/robert-malhotra/go-chunkio/internal/filter"
	"github.com/robert-malhotra/go-chunkio/internal/layout"
	"github.com/robert-malhotra/go-chunkio/internal/materialize"
	"github.com/robert-malhotra/go-chunkio/section"
)

// ByteOrder is the byte order of stored or returned elements.
type ByteOrder = dtype.Order

// Byte orders.
const (
	LittleEndian = dtype.LittleEndian
	BigEndian    = dtype.BigEndian
)

// NativeOrder returns the byte order of the running machine.
func NativeOrder() ByteOrder {
	return dtype.NativeOrder()
}

// ArrayDescriptor is the geometry and element encoding of an array, as
// produced by the metadata layer of the containing format.
type ArrayDescriptor struct {
	Shape []uint64

	// ChunkShape is ignored for contiguous storage.
	ChunkShape []uint64

	ElementSize int

	// FillValue is one element in ByteOrder used for unwritten chunks.
	// Nil means zero.
	FillValue []byte

	ByteOrder ByteOrder
}

// ChunkEntry is one written chunk: its grid coordinate, stored address
// and size, and the filter mask it was written with.
type ChunkEntry = btree.Entry

// Storage locates the stored elements of an array: Chunked or Contiguous.
type Storage interface {
	storage()
}

// Chunked storage is indexed by a chunk directory rooted at Root.
type Chunked struct {
	Root uint64
}

// Contiguous storage holds the whole array row-major at Address. An
// all-ones address means nothing was written.
type Contiguous struct {
	Address uint64
}

func (Chunked) storage()    {}
func (Contiguous) storage() {}

// Dataset reads sections of one array. It is safe for concurrent use.
type Dataset struct {
	desc     ArrayDescriptor
	layout   layout.Layout
	dir      *btree.Directory
	mat      *materialize.Materializer
	log      logrus.FieldLogger
	unusable atomic.Bool
	closed   atomic.Bool
}

// Open prepares r for reading the array described by desc. No bytes are
// read until the first Read.
func Open(r io.ReaderAt, desc ArrayDescriptor, storage Storage, opts ...Option) (*Dataset, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.serializedReads {
		r = binary.NewSerialReaderAt(r)
	}
	// Directory fields are little-endian whatever the element order.
	cfg := binary.DefaultConfig()
	cfg.OffsetSize = o.offsetSize
	cfg.LengthSize = o.lengthSize
	reader := binary.NewReader(r, cfg)

	ds := &Dataset{desc: desc, log: o.logger}
	var err error
	switch st := storage.(type) {
	case Chunked:
		ds.dir, err = btree.New(reader, st.Root, desc.ChunkShape, o.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
		}
		ds.layout, err = layout.NewRegular(desc.Shape, desc.ChunkShape, desc.ElementSize, ds.dir)
	case Contiguous:
		ds.layout, err = layout.NewContiguous(desc.Shape, desc.ElementSize, st.Address, o.offsetSize)
	default:
		return nil, fmt.Errorf("%w: unknown storage %T", ErrInvalidDescriptor, storage)
	}
	if err != nil {
		return nil, fmt.Errorf("creating layout: %w", err)
	}

	var pipeline *filter.Pipeline
	if len(o.filters) > 0 {
		if _, ok := storage.(Contiguous); ok {
			return nil, fmt.Errorf("%w: contiguous storage cannot be filtered", ErrInvalidDescriptor)
		}
		pipeline = filter.NewPipeline(o.filters, desc.ElementSize)
		if err := pipeline.Supported(); err != nil {
			o.logger.WithError(err).Warn("filter pipeline has filters without a decoder")
		}
		o.logger.WithField("filters", pipeline.Len()).Debug("filter pipeline ready")
	}

	ds.mat, err = materialize.New(ds.layout, reader, pipeline, materialize.Config{
		FillValue:   desc.FillValue,
		StoredOrder: desc.ByteOrder,
		NativeOrder: o.nativeOrder,
		Concurrency: o.concurrency,
		Cache:       materialize.NewChunkCache(o.cacheChunks),
		Logger:      o.logger,
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Shape returns the dimensions of the array.
func (d *Dataset) Shape() []uint64 {
	return d.layout.Shape()
}

// ChunkShape returns the shape of one stored chunk. For contiguous
// storage it equals Shape.
func (d *Dataset) ChunkShape() []uint64 {
	return d.layout.ChunkShape()
}

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int {
	return len(d.desc.Shape)
}

// ElementSize returns the size of each element in bytes.
func (d *Dataset) ElementSize() int {
	return d.desc.ElementSize
}

// NumElements returns the total number of elements.
func (d *Dataset) NumElements() uint64 {
	n := uint64(1)
	for _, s := range d.desc.Shape {
		n *= s
	}
	return n
}

// IsChunked reports whether the array is stored in chunks.
func (d *Dataset) IsChunked() bool {
	return d.dir != nil
}

// Read returns the elements selected by s, row-major in the section's
// dimension order, in the native byte order.
func (d *Dataset) Read(s section.Section) ([]byte, error) {
	return d.ReadContext(context.Background(), s)
}

// ReadContext is like Read but stops between chunks when ctx is done.
func (d *Dataset) ReadContext(ctx context.Context, s section.Section) ([]byte, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if d.unusable.Load() {
		return nil, ErrDatasetUnusable
	}

	out, err := d.mat.Read(ctx, s)
	if err != nil {
		d.checkCorrupt(err)
		return nil, fmt.Errorf("reading %s: %w", s, err)
	}
	return out, nil
}

// ReadAll reads the whole array.
func (d *Dataset) ReadAll() ([]byte, error) {
	s, err := section.FromShape(d.desc.Shape)
	if err != nil {
		return nil, err
	}
	return d.Read(s)
}

// Entries lists every written chunk in row-major coordinate order.
func (d *Dataset) Entries(ctx context.Context) ([]ChunkEntry, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if d.dir == nil {
		return nil, ErrNotChunked
	}
	if d.unusable.Load() {
		return nil, ErrDatasetUnusable
	}
	entries, err := d.dir.Entries(ctx)
	if err != nil {
		d.checkCorrupt(err)
		return nil, err
	}
	return entries, nil
}

// Close marks the dataset closed; later reads fail with ErrClosed. The
// underlying reader is owned by the caller and stays open.
func (d *Dataset) Close() error {
	d.closed.Store(true)
	return nil
}

func (d *Dataset) checkCorrupt(err error) {
	if d.dir == nil || !errors.Is(err, ErrCorruptDirectory) {
		return
	}
	if d.unusable.CompareAndSwap(false, true) {
		d.log.WithError(err).Warn("chunk directory is corrupt, dataset disabled")
	}
}

// TotalElementCount returns the number of elements s selects.
func TotalElementCount(s section.Section) uint64 {
	return s.Size()
}
