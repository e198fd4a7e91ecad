package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var rootPattern = regexp.MustCompile(`root=(0x[0-9a-f]+)`)

func generate(t *testing.T, args ...string) (path, root string) {
	t.Helper()
	path = filepath.Join(t.TempDir(), "array.bin")
	out, err := run(t, append([]string{"generate", path}, args...)...)
	require.NoError(t, err)
	m := rootPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	return path, m[1]
}

func TestGenerateAndRead(t *testing.T) {
	array := []string{"--shape", "6,4", "--chunks", "3,2", "--elem-size", "2", "--filters", "shuffle,deflate"}
	path, root := generate(t, append(array, "--every", "2")...)

	out, err := run(t, append([]string{"read", path, "--root", root, "--section", "0:5:5,1:3:2"}, array...)...)
	require.NoError(t, err)
	// Column 3 falls in chunk [0 1], which was not written.
	assert.Equal(t, "1 0\n21 0\n", out)

	out, err = run(t, append([]string{"read", path, "--root", root, "--section", "4,0:3", "--kind", "int", "--concurrency", "2"}, array...)...)
	require.NoError(t, err)
	assert.Equal(t, "16 17 0 0\n", out)

	out, err = run(t, append([]string{"entries", path, "--root", root}, array...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 4 chunks written")
	assert.Contains(t, out, "[0 0]\t")
	assert.Contains(t, out, "[1 0]\t")
	assert.NotContains(t, out, "[0 1]\t")
}

func TestGenerateBigEndianSmallOffsets(t *testing.T) {
	array := []string{"--shape", "10", "--chunks", "4", "--elem-size", "4", "--order", "big", "--offset-size", "4", "--length-size", "4", "--filters", "lz4"}
	path, root := generate(t, append(array, "--fanout", "2")...)

	out, err := run(t, append([]string{"read", path, "--root", root, "--section", "1:9:4"}, array...)...)
	require.NoError(t, err)
	assert.Equal(t, "1 5 9\n", out)
}

func TestReadRootFromHeader(t *testing.T) {
	array := []string{"--shape", "10", "--chunks", "4", "--elem-size", "2", "--offset-size", "4", "--length-size", "2"}
	path, _ := generate(t, append(array, "--fanout", "2")...)

	// The header supplies root and address sizes; the flags here are defaults.
	out, err := run(t, "read", path, "--shape", "10", "--chunks", "4", "--elem-size", "2", "--section", "7:9")
	require.NoError(t, err)
	assert.Equal(t, "7 8 9\n", out)

	out, err = run(t, "entries", path, "--shape", "10", "--chunks", "4", "--elem-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "3 of 3 chunks written")
}

func TestReadFlagErrors(t *testing.T) {
	array := []string{"--shape", "4", "--chunks", "2"}
	path, root := generate(t, array...)
	foreign := filepath.Join(t.TempDir(), "foreign.bin")
	require.NoError(t, os.WriteFile(foreign, []byte("plain bytes, no header"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"no storage in foreign file", []string{"read", foreign}},
		{"both storages", []string{"read", path, "--root", root, "--contiguous", "0x40"}},
		{"bad section", []string{"read", path, "--root", root, "--section", "0:9"}},
		{"bad filter", []string{"read", path, "--root", root, "--filters", "bogus"}},
		{"bad kind", []string{"read", path, "--root", root, "--kind", "complex"}},
		{"contiguous entries", []string{"entries", path, "--contiguous", "0x40"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append(tt.args, array...)...)
			assert.Error(t, err)
		})
	}
}

func TestParseDims(t *testing.T) {
	dims, err := parseDims("3, 4,5")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4, 5}, dims)

	for _, bad := range []string{"", "3,,4", "0,2", "x"} {
		_, err := parseDims(bad)
		assert.Error(t, err, bad)
	}
}
