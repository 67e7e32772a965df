package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/app"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
)

func newPendingCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect postings waiting in the outbox",
	}
	cmd.AddCommand(newPendingListCommand(c), newPendingRetryCommand(c))
	return cmd
}

func newPendingListCommand(c *cli) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending postings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := model.PendingFilter{Status: model.PendingStatus(status)}
			switch f.Status {
			case "", model.PendingStatusPending, model.PendingStatusPosted, model.PendingStatusFailed:
			default:
				return errs.Validation("unknown status %q (want pending, posted or failed)", status)
			}
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Store.ListPending(ctx, f)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No pending postings")
					return nil
				}
				t := newTable(out, "ID", "KIND", "SOURCE", "STATUS", "ATTEMPTS", "NEXT ATTEMPT", "LAST ERROR")
				for _, p := range items {
					t.row(p.ID, string(p.Kind), p.SourceID, string(p.Status),
						fmt.Sprint(p.Attempts), p.NextAttemptAt.Format("2006-01-02 15:04"), p.LastError)
				}
				return t.flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only pending, posted or failed postings")
	return cmd
}

func newPendingRetryCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Make a pending or failed posting due now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Reconciler.Retry(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s scheduled for retry\n", args[0])
				return nil
			})
		},
	}
}

func newReconcileCommand(c *cli) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Retry postings waiting in the outbox",
		Long: `Retry due postings from the outbox once, or with --watch keep retrying
every reconcile.interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.RequireChart(); err != nil {
					return err
				}
				if !watch {
					sum, err := rt.Reconciler.RunOnce(ctx)
					fmt.Fprintf(cmd.OutOrStdout(), "Posted %d, rescheduled %d, failed %d\n",
						sum.Posted, sum.Rescheduled, sum.Failed)
					return err
				}

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				if err := rt.Reconciler.Start(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reconciling every %s, press Ctrl-C to stop\n",
					rt.Config.Posting.Reconcile.Interval)
				<-ctx.Done()
				rt.Reconciler.Stop()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running until interrupted")
	return cmd
}
