package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/app"
	"github.com/cleared-dev/tillbook/internal/config"
	"github.com/cleared-dev/tillbook/internal/model"
)

type initOptions struct {
	name      string
	driver    string
	dsn       string
	dbName    string
	chartFile string
}

func newInitCommand(c *cli) *cobra.Command {
	var o initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tillbook project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.dir
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, c, absDir, o)
		},
	}

	cmd.Flags().StringVar(&o.name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&o.driver, "driver", config.DriverSQLite, "database driver: sqlite, bolt, mongo, postgres or memory")
	cmd.Flags().StringVar(&o.dsn, "dsn", "", "database file or connection URI (default tillbook.db for file drivers)")
	cmd.Flags().StringVar(&o.dbName, "db-name", "", "database name (mongo)")
	cmd.Flags().StringVar(&o.chartFile, "chart", "", "CSV chart of accounts to seed instead of the starter chart")

	return cmd
}

func runInit(cmd *cobra.Command, c *cli, dir string, o initOptions) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	cfg := config.Default(o.name)
	cfg.Database.Driver = o.driver
	switch {
	case o.dsn != "":
		cfg.Database.DSN = o.dsn
	case o.driver == config.DriverMemory:
		cfg.Database.DSN = ""
	case o.driver == config.DriverBolt:
		cfg.Database.DSN = "tillbook.bolt"
	}
	cfg.Database.Name = o.dbName
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create directory structure.
	dirs := []string{
		cfg.Import.Dir,
		filepath.Join(cfg.Import.Dir, "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if o.chartFile != "" {
		data, err := os.ReadFile(o.chartFile)
		if err != nil {
			return fmt.Errorf("reading chart file: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "chart-of-accounts.csv"), data, 0o644); err != nil {
			return fmt.Errorf("writing chart of accounts: %w", err)
		}
		cfg.Accounts.ChartFile = "chart-of-accounts.csv"
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignore := "*.db\n*.bolt\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Opening seeds the chart of accounts.
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := app.Open(ctx, dir, cfg, app.WithLogger(c.logger))
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
	}
	defer rt.Close()

	accts, err := rt.Registry.ListAccounts(ctx, model.AccountFilter{})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized tillbook project at %s (%s, %d accounts)\n", dir, cfg.Database.Driver, len(accts))
	if rt.ChartErr != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %v\n", rt.ChartErr)
	}
	return nil
}
