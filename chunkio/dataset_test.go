package chunkio

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-chunkio/internal/binary"
	"github.com/robert-malhotra/go-chunkio/internal/fixture"
	"github.com/robert-malhotra/go-chunkio/section"
)

func quiet() Option {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return WithLogger(l)
}

func flatIndex(shape, g []uint64) uint64 {
	var idx uint64
	for d := range shape {
		idx = idx*shape[d] + g[d]
	}
	return idx
}

// sequential writes the row-major index of every element as a uint32 in
// order.
func sequential(shape []uint64, order binary.ByteOrder) func(g []uint64, elem []byte) {
	return func(g []uint64, elem []byte) {
		order.PutUint32(elem, uint32(flatIndex(shape, g)))
	}
}

func uint32s(t *testing.T, data []byte) []uint32 {
	t.Helper()
	require.Zero(t, len(data)%4)
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.NativeEndian.Uint32(data[i*4:])
	}
	return out
}

// chunkedFile builds a chunked uint32 array holding its own row-major
// indices, keeping the chunks for which keep is true.
func chunkedFile(t *testing.T, shape, chunkShape []uint64, keep func([]uint64) bool, opts ...fixture.Option) (*binpkg.Buffer, uint64) {
	t.Helper()
	b := fixture.New(shape, chunkShape, 4, opts...)
	require.NoError(t, b.Generate(sequential(shape, binary.LittleEndian), keep))
	root, err := b.Finish()
	require.NoError(t, err)
	return b.Buffer(), root
}

func TestReadStride(t *testing.T) {
	shape := []uint64{100}
	buf, root := chunkedFile(t, shape, []uint64{10}, nil)
	ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{10}, ElementSize: 4}, Chunked{Root: root}, quiet())
	require.NoError(t, err)

	s, err := section.FromOriginShape([]uint64{3}, []uint64{5}, []uint64{7})
	require.NoError(t, err)
	out, err := ds.Read(s)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 10, 17, 24, 31}, uint32s(t, out))
}

func TestReadEdgeClipping(t *testing.T) {
	shape := []uint64{25, 25}
	buf, root := chunkedFile(t, shape, []uint64{10, 10}, nil)
	ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{10, 10}, ElementSize: 4}, Chunked{Root: root}, quiet())
	require.NoError(t, err)

	out, err := ds.Read(section.MustParse("(20:24,20:24)", shape))
	require.NoError(t, err)
	got := uint32s(t, out)
	require.Len(t, got, 25)
	for i, v := range got {
		r, c := 20+i/5, 20+i%5
		assert.Equal(t, uint32(r*25+c), v, "element %d,%d", r, c)
	}
}

func TestReadElementCount(t *testing.T) {
	shape := []uint64{9, 14, 5}
	buf, root := chunkedFile(t, shape, []uint64{4, 4, 2}, nil)
	ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{4, 4, 2}, ElementSize: 4}, Chunked{Root: root}, quiet(), WithConcurrency(3))
	require.NoError(t, err)

	for _, spec := range []string{":,:,:", "1:8:2,0:13:13,4", "0,0,0", "3:5,2:11:3,0:4:2"} {
		s := section.MustParse(spec, shape)
		out, err := ds.Read(s)
		require.NoError(t, err, spec)
		assert.Len(t, out, int(TotalElementCount(s))*ds.ElementSize(), spec)
	}
}

func TestReadIdentityWithFill(t *testing.T) {
	shape := []uint64{12, 12}
	chunkShape := []uint64{5, 5}
	keep := func(c []uint64) bool { return (c[0]+c[1])%2 == 0 }
	buf, root := chunkedFile(t, shape, chunkShape, keep)
	fill := binary.LittleEndian.AppendUint32(nil, 0xdeadbeef)

	ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: chunkShape, ElementSize: 4, FillValue: fill},
		Chunked{Root: root}, quiet(), WithNativeOrder(LittleEndian))
	require.NoError(t, err)

	out, err := ds.ReadAll()
	require.NoError(t, err)
	got := make([]uint32, len(out)/4)
	for i := range got {
		got[i] = binary.LittleEndian.Uint32(out[i*4:])
	}
	for r := uint64(0); r < 12; r++ {
		for c := uint64(0); c < 12; c++ {
			want := uint32(r*12 + c)
			if !keep([]uint64{r / 5, c / 5}) {
				want = 0xdeadbeef
			}
			require.Equal(t, want, got[r*12+c], "element %d,%d", r, c)
		}
	}
}

func TestReadBigEndian(t *testing.T) {
	shape := []uint64{4, 4}
	b := fixture.New(shape, []uint64{2, 4}, 4)
	require.NoError(t, b.Generate(sequential(shape, binary.BigEndian), func(c []uint64) bool { return c[0] == 0 }))
	root, err := b.Finish()
	require.NoError(t, err)

	desc := ArrayDescriptor{
		Shape:       shape,
		ChunkShape:  []uint64{2, 4},
		ElementSize: 4,
		FillValue:   binary.BigEndian.AppendUint32(nil, 99),
		ByteOrder:   BigEndian,
	}
	for _, native := range []ByteOrder{LittleEndian, BigEndian} {
		ds, err := Open(b.Buffer(), desc, Chunked{Root: root}, quiet(), WithNativeOrder(native))
		require.NoError(t, err)

		out, err := ds.Read(section.MustParse("1:2,1", shape))
		require.NoError(t, err)
		order := native.ByteOrder()
		assert.Equal(t, uint32(5), order.Uint32(out[0:]), "native %s", native)
		assert.Equal(t, uint32(99), order.Uint32(out[4:]), "native %s", native)
	}
}

func TestReadFiltered(t *testing.T) {
	shape := []uint64{30, 20}
	chunkShape := []uint64{7, 6}
	tests := []struct {
		name    string
		filters []FilterInfo
	}{
		{"deflate", []FilterInfo{{ID: FilterShuffle}, {ID: FilterDeflate}}},
		{"lz4", []FilterInfo{{ID: FilterLZ4}}},
		{"zstd with checksum", []FilterInfo{{ID: FilterZstd}, {ID: FilterFletcher32}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, root := chunkedFile(t, shape, chunkShape, nil, fixture.WithFilters(tt.filters...))
			ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: chunkShape, ElementSize: 4},
				Chunked{Root: root}, quiet(), WithFilters(tt.filters...), WithConcurrency(4), WithChunkCache(16))
			require.NoError(t, err)

			s := section.MustParse("2:29:9,1:19:6", shape)
			out, err := ds.Read(s)
			require.NoError(t, err)
			var want []uint32
			for _, r := range []uint32{2, 11, 20, 29} {
				for _, c := range []uint32{1, 7, 13, 19} {
					want = append(want, r*20+c)
				}
			}
			assert.Equal(t, want, uint32s(t, out))
		})
	}
}

func TestReadUnsupportedFilter(t *testing.T) {
	shape := []uint64{8}
	b := fixture.New(shape, []uint64{4}, 1)
	require.NoError(t, b.PutRaw([]uint64{1}, []byte{1, 2, 3, 4}, 0))
	root, err := b.Finish()
	require.NoError(t, err)

	ds, err := Open(b.Buffer(), ArrayDescriptor{Shape: shape, ChunkShape: []uint64{4}, ElementSize: 1},
		Chunked{Root: root}, quiet(), WithFilters(FilterInfo{ID: FilterSZIP, Flags: FilterOptional}))
	require.NoError(t, err, "unsupported filters fail on use, not on open")

	// Chunk 0 was never written, so no filter is needed.
	out, err := ds.Read(section.MustParse("0:3", nil))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 4), out)

	out, err = ds.Read(section.MustParse("2:5", nil))
	require.ErrorIs(t, err, ErrUnsupportedFilter)
	assert.Nil(t, out)
	var ce *ChunkError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []uint64{1}, ce.Coord)
}

func TestReadOutOfRangeDoesNoIO(t *testing.T) {
	shape := []uint64{10, 10}
	buf, root := chunkedFile(t, shape, []uint64{5, 5}, nil)
	counter := fixture.NewCountingReaderAt(buf)
	ds, err := Open(counter, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{5, 5}, ElementSize: 4}, Chunked{Root: root}, quiet())
	require.NoError(t, err)

	tests := []struct {
		name string
		s    section.Section
		want error
	}{
		{"start past end", section.MustParse("10,0", nil), ErrOutOfRange},
		{"last past end", section.MustParse("0:9:3,2:11", nil), ErrOutOfRange},
		{"rank mismatch", section.MustParse("0:4", nil), ErrInvalidSection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ds.Read(tt.s)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var re *RangeError
	_, err = ds.Read(section.MustParse("0,12", nil))
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Dim)
	assert.Zero(t, counter.Calls())
}

func TestSingleChunkVisitedOnce(t *testing.T) {
	shape := []uint64{100, 50}
	data := make([]byte, 100*50)

	b := fixture.New(shape, shape, 1)
	require.NoError(t, b.PutChunk([]uint64{0, 0}, data, 0))
	root, err := b.Finish()
	require.NoError(t, err)
	contig, addr := fixture.Contiguous(data)

	s := section.MustParse("0:99:33,1:49:24", nil)
	desc := ArrayDescriptor{Shape: shape, ChunkShape: shape, ElementSize: 1}

	counter := fixture.NewCountingReaderAt(b.Buffer())
	ds, err := Open(counter, desc, Chunked{Root: root}, quiet())
	require.NoError(t, err)
	_, err = ds.Read(s)
	require.NoError(t, err)
	// Header and body of the single directory node, then the chunk.
	assert.Equal(t, int64(3), counter.Calls())

	counter = fixture.NewCountingReaderAt(contig)
	ds, err = Open(counter, desc, Contiguous{Address: addr}, quiet())
	require.NoError(t, err)
	_, err = ds.Read(s)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter.Calls())
}

func TestCorruptDirectoryDisablesDataset(t *testing.T) {
	shape := []uint64{40}
	buf, root := chunkedFile(t, shape, []uint64{4}, nil, fixture.WithFanout(4))
	_, err := buf.WriteAt([]byte("JUNK"), int64(root))
	require.NoError(t, err)

	ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{4}, ElementSize: 4}, Chunked{Root: root}, quiet())
	require.NoError(t, err)

	_, err = ds.Read(section.MustParse("0:3", nil))
	require.ErrorIs(t, err, ErrCorruptDirectory)

	_, err = ds.Read(section.MustParse("0:3", nil))
	assert.ErrorIs(t, err, ErrDatasetUnusable)
	_, err = ds.Entries(context.Background())
	assert.ErrorIs(t, err, ErrDatasetUnusable)

	// Contiguous datasets in the same file are unaffected.
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	contig, addr := fixture.Contiguous(data)
	cds, err := Open(contig, ArrayDescriptor{Shape: []uint64{16}, ElementSize: 1}, Contiguous{Address: addr}, quiet())
	require.NoError(t, err)
	out, err := cds.Read(section.MustParse("4:12:4", nil))
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 8, 12}, out)
}

func TestIOErrorsAreNotCorruption(t *testing.T) {
	shape := []uint64{8}
	buf, root := chunkedFile(t, shape, []uint64{4}, nil)
	truncated := binpkg.NewBuffer(buf.Bytes()[:root+8])

	ds, err := Open(truncated, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{4}, ElementSize: 4}, Chunked{Root: root}, quiet())
	require.NoError(t, err)

	_, err = ds.Read(section.MustParse("0:7", nil))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrCorruptDirectory)

	_, err = ds.Read(section.MustParse("0:7", nil))
	assert.NotErrorIs(t, err, ErrDatasetUnusable)
}

func TestShortDirectoryNodeIsCorruption(t *testing.T) {
	shape := []uint64{8}
	buf, root := chunkedFile(t, shape, []uint64{4}, nil)
	// The node header is intact but its keys are cut off.
	truncated := binpkg.NewBuffer(buf.Bytes()[:root+24+10])

	ds, err := Open(truncated, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{4}, ElementSize: 4}, Chunked{Root: root}, quiet())
	require.NoError(t, err)

	_, err = ds.Read(section.MustParse("0:7", nil))
	require.ErrorIs(t, err, ErrCorruptDirectory)

	_, err = ds.Read(section.MustParse("0:7", nil))
	assert.ErrorIs(t, err, ErrDatasetUnusable)
}

func TestEntries(t *testing.T) {
	shape := []uint64{6, 6}
	keep := func(c []uint64) bool { return c[1] != 1 }
	buf, root := chunkedFile(t, shape, []uint64{2, 3}, keep, fixture.WithFanout(2))
	ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{2, 3}, ElementSize: 4}, Chunked{Root: root}, quiet())
	require.NoError(t, err)
	assert.True(t, ds.IsChunked())

	entries, err := ds.Entries(context.Background())
	require.NoError(t, err)
	var coords [][]uint64
	for _, e := range entries {
		coords = append(coords, e.Coord)
		assert.Equal(t, uint32(24), e.Size)
	}
	assert.Equal(t, [][]uint64{{0, 0}, {1, 0}, {2, 0}}, coords)

	contig, addr := fixture.Contiguous(make([]byte, 144))
	cds, err := Open(contig, ArrayDescriptor{Shape: shape, ElementSize: 4}, Contiguous{Address: addr}, quiet())
	require.NoError(t, err)
	_, err = cds.Entries(context.Background())
	assert.ErrorIs(t, err, ErrNotChunked)
}

func TestSmallOffsets(t *testing.T) {
	shape := []uint64{50}
	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 4}
	buf, root := chunkedFile(t, shape, []uint64{8}, func(c []uint64) bool { return c[0] != 2 }, fixture.WithConfig(cfg))

	ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{8}, ElementSize: 4},
		Chunked{Root: root}, quiet(), WithOffsetSize(4), WithLengthSize(4), WithOffsetSize(3))
	require.NoError(t, err)

	out, err := ds.Read(section.MustParse("14:26:6", nil))
	require.NoError(t, err)
	assert.Equal(t, []uint32{14, 0, 26}, uint32s(t, out))
}

func TestConcurrentReadsSerialized(t *testing.T) {
	shape := []uint64{64, 64}
	buf, root := chunkedFile(t, shape, []uint64{8, 8}, nil)
	src := binpkg.NewSeekReaderAt(io.NewSectionReader(buf, 0, int64(buf.Len())))
	ds, err := Open(src, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{8, 8}, ElementSize: 4},
		Chunked{Root: root}, quiet(), WithSerializedReads(), WithConcurrency(4))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := uint64(i * 8)
			s, err := section.FromOriginShape([]uint64{r, 0}, []uint64{8, 32}, []uint64{1, 2})
			if !assert.NoError(t, err) {
				return
			}
			out, err := ds.Read(s)
			if !assert.NoError(t, err) {
				return
			}
			got := uint32s(t, out)
			assert.Equal(t, uint32(r*64), got[0])
			assert.Equal(t, uint32((r+7)*64+62), got[len(got)-1])
		}()
	}
	wg.Wait()
}

func TestReadCancelled(t *testing.T) {
	shape := []uint64{20}
	buf, root := chunkedFile(t, shape, []uint64{2}, nil)
	ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{2}, ElementSize: 4}, Chunked{Root: root}, quiet())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := ds.ReadContext(ctx, section.MustParse("0:19", nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)

	_, err = ds.Read(section.MustParse("0:19", nil))
	assert.NoError(t, err)
}

func TestClose(t *testing.T) {
	shape := []uint64{4}
	buf, root := chunkedFile(t, shape, []uint64{4}, nil)
	ds, err := Open(buf, ArrayDescriptor{Shape: shape, ChunkShape: []uint64{4}, ElementSize: 4}, Chunked{Root: root}, quiet())
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	_, err = ds.ReadAll()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = ds.Entries(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenRejectsBadDescriptors(t *testing.T) {
	buf := binpkg.NewBuffer(nil)
	tests := []struct {
		name    string
		desc    ArrayDescriptor
		storage Storage
		opts    []Option
	}{
		{"rank mismatch", ArrayDescriptor{Shape: []uint64{4, 4}, ChunkShape: []uint64{2}, ElementSize: 4}, Chunked{}, nil},
		{"zero chunk", ArrayDescriptor{Shape: []uint64{4}, ChunkShape: []uint64{0}, ElementSize: 4}, Chunked{}, nil},
		{"zero element size", ArrayDescriptor{Shape: []uint64{4}, ElementSize: 0}, Contiguous{}, nil},
		{"fill size", ArrayDescriptor{Shape: []uint64{4}, ElementSize: 4, FillValue: []byte{1}}, Contiguous{}, nil},
		{"nil storage", ArrayDescriptor{Shape: []uint64{4}, ElementSize: 4}, nil, nil},
		{"filtered contiguous", ArrayDescriptor{Shape: []uint64{4}, ElementSize: 4}, Contiguous{}, []Option{WithFilters(FilterInfo{ID: FilterDeflate})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(buf, tt.desc, tt.storage, append(tt.opts, quiet())...)
			assert.ErrorIs(t, err, ErrInvalidDescriptor)
		})
	}
}

func TestTotalElementCount(t *testing.T) {
	assert.Equal(t, uint64(5), TotalElementCount(section.MustParse("3:31:7", nil)))
	assert.Equal(t, uint64(24), TotalElementCount(section.MustParse("0:3,0:5:2,1:2", nil)))
}
