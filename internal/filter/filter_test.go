package filter

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + i/13)
	}
	return data
}

func TestFilterRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		info Info
		data []byte
	}{
		{"deflate", Info{ID: IDDeflate}, sampleData(4000)},
		{"deflate level 1", Info{ID: IDDeflate, ClientData: []uint32{1}}, sampleData(100)},
		{"shuffle", Info{ID: IDShuffle, ClientData: []uint32{4}}, sampleData(400)},
		{"shuffle with tail", Info{ID: IDShuffle, ClientData: []uint32{4}}, sampleData(403)},
		{"fletcher32", Info{ID: IDFletcher32}, sampleData(301)},
		{"lz4 single block", Info{ID: IDLZ4}, bytes.Repeat([]byte("chunk"), 500)},
		{"lz4 many blocks", Info{ID: IDLZ4, ClientData: []uint32{64}}, bytes.Repeat([]byte("abcd"), 100)},
		{"lz4 incompressible", Info{ID: IDLZ4, ClientData: []uint32{16}}, sampleData(50)},
		{"lz4 empty", Info{ID: IDLZ4}, []byte{}},
		{"zstd", Info{ID: IDZstd}, sampleData(5000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.info)
			require.NoError(t, err)
			assert.Equal(t, tt.info.ID, f.ID())

			enc, err := f.(Encoder).Encode(tt.data)
			require.NoError(t, err)
			dec, err := f.Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, len(tt.data), len(dec))
			assert.True(t, bytes.Equal(tt.data, dec))
		})
	}
}

func TestShuffleLayout(t *testing.T) {
	original := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x11, 0x12, 0x13, 0x14,
		0x21, 0x22, 0x23, 0x24,
	}
	shuffled := []byte{
		0x01, 0x11, 0x21,
		0x02, 0x12, 0x22,
		0x03, 0x13, 0x23,
		0x04, 0x14, 0x24,
	}
	f := NewShuffle([]uint32{4})

	got, err := f.Encode(original)
	require.NoError(t, err)
	assert.Equal(t, shuffled, got)

	got, err = f.Decode(shuffled)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestFletcher32DetectsCorruption(t *testing.T) {
	f := NewFletcher32(nil)
	enc, err := f.Encode([]byte("payload"))
	require.NoError(t, err)

	enc[0] ^= 0xff
	_, err = f.Decode(enc)
	assert.ErrorIs(t, err, ErrChecksum)

	_, err = f.Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestLZ4RejectsTruncatedInput(t *testing.T) {
	f := NewLZ4([]uint32{8})
	enc, err := f.Encode(bytes.Repeat([]byte{7}, 40))
	require.NoError(t, err)

	for _, n := range []int{0, 11, 14, len(enc) - 1} {
		_, err := f.Decode(enc[:n])
		assert.Error(t, err, "length %d", n)
	}

	header := make([]byte, 12)
	binary.BigEndian.PutUint64(header, 4)
	_, err = f.Decode(header)
	assert.Error(t, err, "zero block size")
}

func TestDecodeLimit(t *testing.T) {
	data := bytes.Repeat([]byte{9}, 4096)
	tests := []struct {
		name   string
		filter interface {
			Encoder
			LimitedDecoder
		}
	}{
		{"deflate", NewDeflate(nil)},
		{"lz4", NewLZ4([]uint32{1024})},
		{"zstd", NewZstd(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := tt.filter.Encode(data)
			require.NoError(t, err)

			dec, err := tt.filter.DecodeLimit(enc, len(data))
			require.NoError(t, err)
			assert.Equal(t, data, dec)

			_, err = tt.filter.DecodeLimit(enc, len(data)-1)
			assert.ErrorIs(t, err, ErrTooLarge)
		})
	}
}

func TestPipelineDecodeLimit(t *testing.T) {
	infos := []Info{{ID: IDShuffle}, {ID: IDDeflate}, {ID: IDFletcher32}}
	p := NewPipeline(infos, 4)
	data := sampleData(800)
	enc, err := p.Encode(data, 0)
	require.NoError(t, err)

	dec, err := p.DecodeLimit(enc, 0, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, dec)

	_, err = p.DecodeLimit(enc, 0, len(data)/2)
	assert.ErrorIs(t, err, ErrTooLarge)

	// Masking deflate leaves no filter that can enforce the bound.
	enc, err = p.Encode(data, 0b010)
	require.NoError(t, err)
	dec, err = p.DecodeLimit(enc, 0b010, len(data)/2)
	require.NoError(t, err)
	assert.Equal(t, data, dec)

	assert.Equal(t, 100, stageLimit(100, 0))
	assert.Equal(t, 100+1+64, stageLimit(100, 1))
}

func TestPipelineOrderAndMask(t *testing.T) {
	infos := []Info{
		{ID: IDShuffle},
		{ID: IDDeflate, Flags: FlagOptional},
		{ID: IDFletcher32},
	}
	p := NewPipeline(infos, 8)
	require.NoError(t, p.Supported())
	assert.Equal(t, 3, p.Len())
	assert.False(t, p.Empty())
	assert.Equal(t, infos, p.Infos())

	data := sampleData(800)
	for _, mask := range []uint32{0, 0b010, 0b111, 0b101} {
		enc, err := p.Encode(data, mask)
		require.NoError(t, err)
		dec, err := p.Decode(enc, mask)
		require.NoError(t, err, "mask %03b", mask)
		assert.Equal(t, data, dec, "mask %03b", mask)
	}

	// A mask that disagrees with how the chunk was written cannot
	// reproduce the data.
	enc, err := p.Encode(data, 0)
	require.NoError(t, err)
	dec, err := p.Decode(enc, 0b010)
	require.NoError(t, err)
	assert.NotEqual(t, data, dec)

	empty := NewPipeline(nil, 4)
	assert.True(t, empty.Empty())
	out, err := empty.Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestPipelineShuffleElementSizeFallback(t *testing.T) {
	data := sampleData(64)
	withSize := NewPipeline([]Info{{ID: IDShuffle, ClientData: []uint32{8}}}, 0)
	fallback := NewPipeline([]Info{{ID: IDShuffle}}, 8)

	a, err := withSize.Encode(data, 0)
	require.NoError(t, err)
	b, err := fallback.Encode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPipelineUnsupportedFilterIsLazy(t *testing.T) {
	tests := []struct {
		name string
		info Info
	}{
		{"required", Info{ID: IDSZIP}},
		{"optional", Info{ID: IDNBit, Flags: FlagOptional}},
		{"unknown", Info{ID: 40000, Name: "custom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline([]Info{{ID: IDDeflate}, tt.info}, 4)
			assert.ErrorIs(t, p.Supported(), ErrUnsupportedFilter)

			deflated, err := NewDeflate(nil).Encode([]byte("data"))
			require.NoError(t, err)

			// Chunks that skip the filter decode normally.
			out, err := p.Decode(deflated, 0b10)
			require.NoError(t, err)
			assert.Equal(t, []byte("data"), out)

			// Chunks that need it fail, even when the filter is optional.
			_, err = p.Decode(deflated, 0)
			assert.ErrorIs(t, err, ErrUnsupportedFilter)

			_, err = p.Encode([]byte("data"), 0)
			assert.ErrorIs(t, err, ErrUnsupportedFilter)
		})
	}
}

func TestInfo(t *testing.T) {
	assert.True(t, Info{Flags: FlagOptional}.IsOptional())
	assert.False(t, Info{}.IsOptional())
	assert.Equal(t, "deflate (ID 1)", Info{ID: IDDeflate}.String())
	assert.Equal(t, "filter 999", Info{ID: 999}.String())
	assert.Equal(t, "mine (ID 999)", Info{ID: 999, Name: "mine"}.String())

	id, ok := ParseName("zstd")
	assert.True(t, ok)
	assert.Equal(t, IDZstd, id)
	_, ok = ParseName("bogus")
	assert.False(t, ok)
}
