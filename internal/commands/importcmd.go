package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/app"
)

func newImportCommand(c *cli) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Post event files from the import directory",
		Long: `Post every CSV file in the import directory. The file name prefix selects
the format: sales-, returns-, adjustments-, purchases- or payments-.
Fully dispatched files are moved to processed/. Use --from to import
from another directory; the global --dir still selects the project.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.RequireChart(); err != nil {
					return err
				}
				target := rt.ImportDir()
				if from != "" {
					target = rt.Path(from)
				}
				results, err := rt.Importer.Run(ctx, target)
				out := cmd.OutOrStdout()
				if len(results) == 0 && err == nil {
					fmt.Fprintf(out, "No files to import in %s\n", target)
					return nil
				}
				t := newTable(out, "FILE", "EVENTS", "POSTED", "DUPLICATE", "SKIPPED", "QUEUED", "ERROR")
				for _, r := range results {
					msg := ""
					if r.Err != nil {
						msg = r.Err.Error()
					}
					t.row(r.Name, fmt.Sprint(r.Events), fmt.Sprint(r.Posted), fmt.Sprint(r.Duplicates),
						fmt.Sprint(r.Skipped), fmt.Sprint(r.Queued), msg)
				}
				if ferr := t.flush(); ferr != nil {
					return ferr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "directory to import, relative to the project (default import.dir from the config)")
	return cmd
}
