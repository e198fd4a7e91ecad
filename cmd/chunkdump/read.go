package main

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-chunkio/chunkio"
	"github.com/robert-malhotra/go-chunkio/internal/dtype"
	"github.com/robert-malhotra/go-chunkio/section"
)

func newReadCmd(cfg *arrayConfig) *cobra.Command {
	var spec, kindName string
	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Read a section and print its elements",
		Long: "Read a section and print its elements, one row of the last " +
			"dimension per line. Sections use inclusive bounds: " +
			`"(0:9,:,3:30:3)".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := dtype.ParseKind(kindName)
			if err != nil {
				return err
			}
			ds, closeFn, err := cfg.open(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			if spec == "" {
				spec = strings.TrimSuffix(strings.Repeat(":,", ds.Rank()), ",")
			}
			s, err := section.Parse(spec, ds.Shape())
			if err != nil {
				return err
			}
			data, err := ds.ReadContext(cmd.Context(), s)
			if err != nil {
				return err
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			defer w.Flush()
			es := ds.ElementSize()
			row := int(s.Range(s.Rank() - 1).Count)
			native := chunkio.NativeOrder()
			for i := 0; i < len(data)/es; i++ {
				if i%row != 0 {
					w.WriteByte(' ')
				}
				w.WriteString(dtype.Format(data[i*es:(i+1)*es], native, kind))
				if i%row == row-1 {
					w.WriteByte('\n')
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "section", "", "section to read (default: whole array)")
	cmd.Flags().StringVar(&kindName, "kind", "uint", "element rendering: uint, int, float or hex")
	cmd.Flags().AddFlagSet(cfg.flagSet())
	cmd.Flags().AddFlagSet(cfg.readFlagSet())
	return cmd
}
