package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robert-malhotra/go-chunkio/chunkio"
	"github.com/robert-malhotra/go-chunkio/internal/dtype"
	"github.com/robert-malhotra/go-chunkio/internal/filter"
	"github.com/robert-malhotra/go-chunkio/internal/fixture"
)

// arrayConfig holds the flags that describe an array and how to read it.
type arrayConfig struct {
	shape       string
	chunks      string
	elemSize    int
	root        string
	contiguous  string
	filters     []string
	order       string
	offsetSize  int
	lengthSize  int
	concurrency int
	cache       int
	verbose     bool
}

func (c *arrayConfig) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("array", pflag.ContinueOnError)
	fs.StringVar(&c.shape, "shape", "", "array shape, comma separated (e.g. 100,50)")
	fs.StringVar(&c.chunks, "chunks", "", "chunk shape, comma separated")
	fs.IntVar(&c.elemSize, "elem-size", 4, "element size in bytes")
	fs.StringVar(&c.order, "order", "little", "stored byte order (little or big)")
	fs.StringSliceVar(&c.filters, "filters", nil, "filters in write order (deflate, shuffle, fletcher32, lz4, zstd)")
	fs.IntVar(&c.offsetSize, "offset-size", 8, "size of file addresses in bytes")
	fs.IntVar(&c.lengthSize, "length-size", 8, "size of stored lengths in bytes")
	return fs
}

func (c *arrayConfig) readFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("read", pflag.ContinueOnError)
	fs.StringVar(&c.root, "root", "", "address of the chunk directory root (read from the header of generated files when omitted)")
	fs.StringVar(&c.contiguous, "contiguous", "", "address of contiguous storage (instead of --root)")
	fs.IntVar(&c.concurrency, "concurrency", 1, "chunks read at once")
	fs.IntVar(&c.cache, "cache", 0, "decoded chunks kept between reads")
	return fs
}

func newRootCmd() *cobra.Command {
	cfg := &arrayConfig{}
	root := &cobra.Command{
		Use:           "chunkdump",
		Short:         "Inspect chunked N-dimensional arrays",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetOutput(cmd.ErrOrStderr())
			logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
			if cfg.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&cfg.verbose, "verbose", "v", false, "log every directory node and chunk read")

	root.AddCommand(newEntriesCmd(cfg), newReadCmd(cfg), newGenerateCmd(cfg))
	return root
}

// open opens the dataset in path described by the flags. The returned
// function closes it and the file.
func (c *arrayConfig) open(path string) (*chunkio.Dataset, func(), error) {
	desc, err := c.descriptor()
	if err != nil {
		return nil, nil, err
	}

	infos, err := c.filterInfos()
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}

	var storage chunkio.Storage
	offsetSize, lengthSize := c.offsetSize, c.lengthSize
	switch {
	case c.root != "" && c.contiguous != "":
		err = fmt.Errorf("--root and --contiguous are mutually exclusive")
	case c.root != "":
		var addr uint64
		if addr, err = strconv.ParseUint(c.root, 0, 64); err != nil {
			err = fmt.Errorf("parsing --root: %w", err)
		}
		storage = chunkio.Chunked{Root: addr}
	case c.contiguous != "":
		var addr uint64
		if addr, err = strconv.ParseUint(c.contiguous, 0, 64); err != nil {
			err = fmt.Errorf("parsing --contiguous: %w", err)
		}
		storage = chunkio.Contiguous{Address: addr}
	default:
		// Files written by generate record their own root.
		var h fixture.Header
		if h, err = fixture.ReadHeader(f); err != nil {
			err = fmt.Errorf("no --root or --contiguous given: %w", err)
		}
		storage = chunkio.Chunked{Root: h.Root}
		offsetSize, lengthSize = h.OffsetSize, h.LengthSize
	}
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	ds, err := chunkio.Open(f, desc, storage,
		chunkio.WithOffsetSize(offsetSize),
		chunkio.WithLengthSize(lengthSize),
		chunkio.WithConcurrency(c.concurrency),
		chunkio.WithChunkCache(c.cache),
		chunkio.WithFilters(infos...),
		chunkio.WithLogger(logrus.StandardLogger()),
	)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return ds, func() {
		ds.Close()
		f.Close()
	}, nil
}

func (c *arrayConfig) descriptor() (chunkio.ArrayDescriptor, error) {
	shape, err := parseDims(c.shape)
	if err != nil {
		return chunkio.ArrayDescriptor{}, fmt.Errorf("parsing --shape: %w", err)
	}
	chunks := shape
	if c.chunks != "" {
		if chunks, err = parseDims(c.chunks); err != nil {
			return chunkio.ArrayDescriptor{}, fmt.Errorf("parsing --chunks: %w", err)
		}
	}
	order, err := dtype.ParseOrder(c.order)
	if err != nil {
		return chunkio.ArrayDescriptor{}, err
	}
	return chunkio.ArrayDescriptor{
		Shape:       shape,
		ChunkShape:  chunks,
		ElementSize: c.elemSize,
		ByteOrder:   order,
	}, nil
}

func (c *arrayConfig) filterInfos() ([]chunkio.FilterInfo, error) {
	var infos []chunkio.FilterInfo
	for _, name := range c.filters {
		id, ok := filter.ParseName(strings.TrimSpace(name))
		if !ok {
			n, err := strconv.ParseUint(name, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("unknown filter %q", name)
			}
			id = uint16(n)
		}
		infos = append(infos, chunkio.FilterInfo{ID: id})
	}
	return infos, nil
}

func parseDims(s string) ([]uint64, error) {
	if s == "" {
		return nil, fmt.Errorf("no dimensions given")
	}
	parts := strings.Split(s, ",")
	dims := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("dimension %d is zero", i)
		}
		dims[i] = n
	}
	return dims, nil
}
