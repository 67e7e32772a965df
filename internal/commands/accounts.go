package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tillbook/internal/accounts"
	"github.com/cleared-dev/tillbook/internal/app"
	"github.com/cleared-dev/tillbook/internal/auditlog"
	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
)

func newAccountsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountsListCommand(c),
		newAccountsTypesCommand(c),
		newAccountsCreateCommand(c),
		newAccountsUpdateCommand(c),
		newAccountsToggleCommand(c, "disable", "Stop new postings to an account", false),
		newAccountsToggleCommand(c, "enable", "Allow postings to a disabled account", true),
		newAccountsDeleteCommand(c),
		newAccountsExportCommand(c),
	)
	return cmd
}

// withRuntime opens the project, runs fn and closes the project.
func withRuntime(c *cli, cmd *cobra.Command, fn func(ctx context.Context, rt *app.Runtime) error) error {
	rt, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, rt)
}

func newAccountsListCommand(c *cli) *cobra.Command {
	var typeName string
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				var f model.AccountFilter
				if typeName != "" {
					t, err := rt.Registry.TypeByName(ctx, typeName)
					if err != nil {
						return err
					}
					f.TypeID = t.ID
				}
				if enabledOnly {
					enabled := true
					f.Enabled = &enabled
				}
				return printAccounts(ctx, cmd, rt, f)
			})
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "only accounts of this type")
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "only enabled accounts")
	return cmd
}

func printAccounts(ctx context.Context, cmd *cobra.Command, rt *app.Runtime, f model.AccountFilter) error {
	rows, err := rt.Registry.Export(ctx)
	if err != nil {
		return err
	}
	accts, err := rt.Registry.ListAccounts(ctx, f)
	if err != nil {
		return err
	}
	include := make(map[string]bool, len(accts))
	for _, a := range accts {
		include[a.Code] = true
	}

	t := newTable(cmd.OutOrStdout(), "CODE", "NAME", "TYPE", "SUBTYPE", "PARENT", "ENABLED")
	for _, r := range rows {
		if !include[r.Code] {
			continue
		}
		t.row(r.Code, r.Name, string(r.Type), r.SubType, r.ParentCode, yesNo(r.Enabled))
	}
	return t.flush()
}

func newAccountsTypesCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List account types and their sub-types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				types, err := rt.Registry.ListTypes(ctx)
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout(), "TYPE", "NORMAL", "SUBTYPES")
				for _, typ := range types {
					subs, err := rt.Registry.ListSubTypes(ctx, typ.ID)
					if err != nil {
						return err
					}
					names := make([]string, 0, len(subs))
					for _, s := range subs {
						names = append(names, s.Name)
					}
					normal := "credit"
					if typ.Name.DebitNormal() {
						normal = "debit"
					}
					t.row(string(typ.Name), normal, strings.Join(names, ", "))
				}
				return t.flush()
			})
		},
	}
}

// subTypeByName finds a sub-type of typeID by name.
func subTypeByName(ctx context.Context, rt *app.Runtime, typeID, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	subs, err := rt.Registry.ListSubTypes(ctx, typeID)
	if err != nil {
		return "", err
	}
	for _, s := range subs {
		if strings.EqualFold(s.Name, name) {
			return s.ID, nil
		}
	}
	return "", errs.Validation("unknown sub-type %q for this account type", name)
}

func accountIDByCode(ctx context.Context, rt *app.Runtime, code string) (string, error) {
	if code == "" {
		return "", nil
	}
	a, err := rt.Registry.GetAccountByCode(ctx, code)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

func newAccountsCreateCommand(c *cli) *cobra.Command {
	var code, name, typeName, subType, parent, description string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				typ, err := rt.Registry.TypeByName(ctx, typeName)
				if err != nil {
					return err
				}
				subID, err := subTypeByName(ctx, rt, typ.ID, subType)
				if err != nil {
					return err
				}
				parentID, err := accountIDByCode(ctx, rt, parent)
				if err != nil {
					return err
				}
				a, err := rt.Registry.CreateAccount(ctx, accounts.AccountSpec{
					Code:        code,
					Name:        name,
					TypeID:      typ.ID,
					SubTypeID:   subID,
					ParentID:    parentID,
					Description: description,
					Disabled:    disabled,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created account %s %s\n", a.Code, a.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "account code (required)")
	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&typeName, "type", "", "account type, e.g. Asset or Expense (required)")
	cmd.Flags().StringVar(&subType, "subtype", "", "sub-type name")
	cmd.Flags().StringVar(&parent, "parent", "", "parent account code")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the account disabled")
	for _, f := range []string{"code", "name", "type"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newAccountsUpdateCommand(c *cli) *cobra.Command {
	var newCode, name, subType, parent, description string

	cmd := &cobra.Command{
		Use:   "update <code>",
		Short: "Change an account's code, name, sub-type, parent or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				a, err := rt.Registry.GetAccountByCode(ctx, args[0])
				if err != nil {
					return err
				}
				var patch accounts.AccountPatch
				flags := cmd.Flags()
				if flags.Changed("code") {
					patch.Code = &newCode
				}
				if flags.Changed("name") {
					patch.Name = &name
				}
				if flags.Changed("description") {
					patch.Description = &description
				}
				if flags.Changed("subtype") {
					subID, err := subTypeByName(ctx, rt, a.TypeID, subType)
					if err != nil {
						return err
					}
					patch.SubTypeID = &subID
				}
				if flags.Changed("parent") {
					parentID, err := accountIDByCode(ctx, rt, parent)
					if err != nil {
						return err
					}
					patch.ParentID = &parentID
				}
				updated, err := rt.Registry.UpdateAccount(ctx, a.ID, patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated account %s %s\n", updated.Code, updated.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&newCode, "code", "", "new account code")
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&subType, "subtype", "", "sub-type name (empty clears)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent account code (empty clears)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	return cmd
}

func newAccountsToggleCommand(c *cli, use, short string, enable bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <code>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				a, err := rt.Registry.GetAccountByCode(ctx, args[0])
				if err != nil {
					return err
				}
				if enable {
					a, err = rt.Registry.EnableAccount(ctx, a.ID)
				} else {
					a, err = rt.Registry.DisableAccount(ctx, a.ID)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %s %sd\n", a.Code, use)
				return nil
			})
		},
	}
}

func newAccountsDeleteCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete an account that has no lines or children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				a, err := rt.Registry.GetAccountByCode(ctx, args[0])
				if err != nil {
					return err
				}
				if err := rt.Registry.DeleteAccount(ctx, a.ID); err != nil {
					if errs.IsConflict(err) {
						return fmt.Errorf("%w (disable it instead)", err)
					}
					return err
				}
				if err := rt.Audit.Record(ctx, auditlog.Entry{
					Action:  auditlog.ActionAccountDeleted,
					Subject: a.Code,
					Details: auditlog.Details(a),
				}); err != nil {
					return fmt.Errorf("account %s deleted but not audited: %w", a.Code, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %s %s\n", a.Code, a.Name)
				return nil
			})
		},
	}
}

func newAccountsExportCommand(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the chart of accounts as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c, cmd, func(ctx context.Context, rt *app.Runtime) error {
				rows, err := rt.Registry.Export(ctx)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					return accounts.WriteAccounts(cmd.OutOrStdout(), rows)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				if err := accounts.WriteAccounts(f, rows); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d accounts to %s\n", len(rows), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
