package chunkio

import (
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-chunkio/internal/filter"
)

// Option configures how a dataset is opened and read.
type Option func(*options)

type options struct {
	offsetSize      int
	lengthSize      int
	concurrency     int
	nativeOrder     ByteOrder
	serializedReads bool
	filters         []FilterInfo
	cacheChunks     int
	logger          logrus.FieldLogger
}

func defaultOptions() *options {
	return &options{
		offsetSize:  8,
		lengthSize:  8,
		concurrency: 1,
		nativeOrder: NativeOrder(),
		logger:      logrus.StandardLogger(),
	}
}

// WithOffsetSize sets the size in bytes of file addresses (2, 4, or 8).
func WithOffsetSize(size int) Option {
	return func(o *options) {
		if size == 2 || size == 4 || size == 8 {
			o.offsetSize = size
		}
	}
}

// WithLengthSize sets the size in bytes of stored lengths (2, 4, or 8).
func WithLengthSize(size int) Option {
	return func(o *options) {
		if size == 2 || size == 4 || size == 8 {
			o.lengthSize = size
		}
	}
}

// WithConcurrency sets how many chunks are read and decoded at once.
// Values below 2 read chunks sequentially.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.concurrency = n
		}
	}
}

// WithNativeOrder sets the byte order of returned buffers. The default is
// the byte order of the running machine.
func WithNativeOrder(order ByteOrder) Option {
	return func(o *options) {
		o.nativeOrder = order
	}
}

// WithSerializedReads funnels every read of the backing source through a
// mutex, for sources that cannot serve concurrent ReadAt calls.
func WithSerializedReads() Option {
	return func(o *options) {
		o.serializedReads = true
	}
}

// WithFilters sets the filter list chunks were written with, in write
// order.
func WithFilters(infos ...FilterInfo) Option {
	return func(o *options) {
		o.filters = append([]FilterInfo(nil), infos...)
	}
}

// WithChunkCache keeps up to n decoded chunks between reads. 0 disables
// the cache.
func WithChunkCache(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.cacheChunks = n
		}
	}
}

// WithLogger sets the logger receiving debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// FilterInfo describes one entry of a filter list.
type FilterInfo = filter.Info

// Filter identifiers understood by the pipeline. SZIP, N-bit and
// scale-offset are recognized but have no decoder.
const (
	FilterDeflate     = filter.IDDeflate
	FilterShuffle     = filter.IDShuffle
	FilterFletcher32  = filter.IDFletcher32
	FilterSZIP        = filter.IDSZIP
	FilterNBit        = filter.IDNBit
	FilterScaleOffset = filter.IDScaleOffset
	FilterLZ4         = filter.IDLZ4
	FilterZstd        = filter.IDZstd

	// FilterOptional marks a filter a writer may skip per chunk.
	FilterOptional = filter.FlagOptional
)
