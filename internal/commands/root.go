package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/app"
	"github.com/cleared-dev/tillbook/internal/buildinfo"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/posting"
)

// cli carries the global flags shared by every subcommand.
type cli struct {
	dir     string
	envPath string
	debug   bool
	logger  *slog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:     "tillbook",
		Short:   "Double-entry books for a retail point of sale",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if c.debug {
				level = "debug"
			}
			logger, err := newLogger(cmd.ErrOrStderr(), level, "text")
			if err != nil {
				return err
			}
			c.logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.dir, "dir", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&c.envPath, "env", "", "env file with TILLBOOK_* overrides (default .env if present)")
	rootCmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newInitCommand(c),
		newAccountsCommand(c),
		newBalanceCommand(c),
		newLinesCommand(c),
		newJournalCommand(c),
		newPostCommand(c),
		newReportCommand(c),
		newPendingCommand(c),
		newReconcileCommand(c),
		newImportCommand(c),
		newSeqCommand(c),
	)

	return rootCmd
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// open loads the project in --dir. The logger is rebuilt from the project's
// log settings unless --debug was given.
func (c *cli) open(cmd *cobra.Command) (*app.Runtime, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := app.LoadConfig(c.dir, c.envPath)
	if err != nil {
		return nil, err
	}
	if !c.debug {
		logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
		c.logger = logger
		slog.SetDefault(logger)
	}

	alerter := posting.AlerterFunc(func(_ context.Context, p model.PendingPosting) {
		fmt.Fprintf(cmd.ErrOrStderr(), "ALERT: posting %s failed after %d attempts: %s\n",
			model.PostingKey(p.Kind, p.SourceID), p.Attempts, p.LastError)
	})
	return app.Open(ctx, c.dir, cfg, app.WithLogger(c.logger), app.WithAlerter(alerter))
}
