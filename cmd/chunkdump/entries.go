package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEntriesCmd(cfg *arrayConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries <file>",
		Short: "List the written chunks of a chunked array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, closeFn, err := cfg.open(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := ds.Entries(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d chunks written\n", len(entries), gridSize(ds.Shape(), ds.ChunkShape()))
			for _, e := range entries {
				fmt.Fprintf(out, "%v\taddress=0x%x\tsize=%d\tmask=%#x\n", e.Coord, e.Address, e.Size, e.FilterMask)
			}
			return nil
		},
	}
	cmd.Flags().AddFlagSet(cfg.flagSet())
	cmd.Flags().AddFlagSet(cfg.readFlagSet())
	return cmd
}

func gridSize(shape, chunkShape []uint64) uint64 {
	n := uint64(1)
	for d := range shape {
		n *= (shape[d] + chunkShape[d] - 1) / chunkShape[d]
	}
	return n
}
