package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/app"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/id"
)

func newSeqCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seq",
		Short: "Document number series",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "next <series>",
		Short: "Allocate the next number of a series (JE, PO, ADJ, RET)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := seriesByName(args[0])
			if err != nil {
				return err
			}
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				number, err := rt.Numbers.Next(ctx, series)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), number)
				return nil
			})
		},
	})
	return cmd
}

func seriesByName(name string) (id.Series, error) {
	for _, s := range id.AllSeries {
		if strings.EqualFold(name, s.Prefix) || strings.EqualFold(name, s.Sequence) {
			return s, nil
		}
	}
	names := make([]string, 0, len(id.AllSeries))
	for _, s := range id.AllSeries {
		names = append(names, s.Prefix)
	}
	return id.Series{}, errs.Validation("unknown series %q (want one of %s)", name, strings.Join(names, ", "))
}
