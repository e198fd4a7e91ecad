package main

import (
	stdbinary "encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-chunkio/internal/binary"
	"github.com/robert-malhotra/go-chunkio/internal/fixture"
)

func newGenerateCmd(cfg *arrayConfig) *cobra.Command {
	var fanout, every int
	cmd := &cobra.Command{
		Use:   "generate <out-file>",
		Short: "Write a synthetic chunked array",
		Long: "Write a chunked array whose elements hold their own row-major " +
			"index, truncated to the element size. With --every n only every " +
			"n-th chunk is written and the rest read as fill.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := cfg.descriptor()
			if err != nil {
				return err
			}
			infos, err := cfg.filterInfos()
			if err != nil {
				return err
			}

			bcfg := binary.DefaultConfig()
			bcfg.OffsetSize = cfg.offsetSize
			bcfg.LengthSize = cfg.lengthSize
			if err := bcfg.Validate(); err != nil {
				return err
			}

			b := fixture.New(desc.Shape, desc.ChunkShape, desc.ElementSize,
				fixture.WithConfig(bcfg), fixture.WithFilters(infos...), fixture.WithFanout(fanout))

			order := desc.ByteOrder.ByteOrder()
			var n int
			keep := func([]uint64) bool {
				n++
				return every <= 1 || (n-1)%every == 0
			}
			err = b.Generate(func(g []uint64, elem []byte) {
				var idx uint64
				for d := range desc.Shape {
					idx = idx*desc.Shape[d] + g[d]
				}
				putIndex(elem, order, idx)
			}, keep)
			if err != nil {
				return err
			}
			root, err := b.Finish()
			if err != nil {
				return err
			}

			if err := os.WriteFile(args[0], b.Buffer().Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "root=0x%x bytes=%d allocations=%d\n", root, b.Buffer().Len(), b.Stats().Count)
			return nil
		},
	}
	cmd.Flags().IntVar(&fanout, "fanout", 0, "maximum children per directory node (default 32)")
	cmd.Flags().IntVar(&every, "every", 1, "write only every n-th chunk")
	cmd.Flags().AddFlagSet(cfg.flagSet())
	return cmd
}

// putIndex stores v in elem, keeping the low-order bytes when elem is
// narrower than 8 bytes.
func putIndex(elem []byte, order stdbinary.ByteOrder, v uint64) {
	switch len(elem) {
	case 1:
		elem[0] = byte(v)
	case 2:
		order.PutUint16(elem, uint16(v))
	case 4:
		order.PutUint32(elem, uint32(v))
	case 8:
		order.PutUint64(elem, v)
	default:
		for i := range elem {
			elem[i] = byte(v >> (8 * i))
		}
	}
}
