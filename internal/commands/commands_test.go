package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tillbook/internal/commands"
	"github.com/cleared-dev/tillbook/internal/config"
	"github.com/cleared-dev/tillbook/internal/errs"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out, stderr bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--dir", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, "tillbook %v", args)
	return out
}

// project initializes a bolt-backed project with the starter chart.
func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out := mustRun(t, dir, "init", "--name", "Corner Shop", "--driver", "bolt")
	require.Contains(t, out, "18 accounts")
	return dir
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := project(t)

	for _, d := range []string{"import", filepath.Join("import", "processed")} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir())
	}
	for _, f := range []string{config.FileName, ".gitignore", "tillbook.bolt"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "%s should exist", f)
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "Corner Shop", cfg.Business.Name)
	assert.Equal(t, config.DriverBolt, cfg.Database.Driver)
}

func TestInit_RefusesExistingProject(t *testing.T) {
	dir := project(t)
	_, err := run(t, dir, "init", "--name", "Again", "--driver", "bolt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_ChartFile(t *testing.T) {
	dir := t.TempDir()
	chart, err := filepath.Abs(filepath.Join("..", "..", "testdata", "chart-of-accounts.csv"))
	require.NoError(t, err)

	out := mustRun(t, dir, "init", "--name", "Shop", "--driver", "bolt", "--chart", chart)
	assert.Contains(t, out, "12 accounts")

	list := mustRun(t, dir, "accounts", "list")
	assert.Contains(t, list, "Till Float")
	assert.NotContains(t, list, "Marketing")
}

func TestCommandsNeedProject(t *testing.T) {
	_, err := run(t, t.TempDir(), "accounts", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tillbook init")
}

func TestAccounts(t *testing.T) {
	dir := project(t)

	out := mustRun(t, dir, "accounts", "create", "--code", "6600", "--name", "Insurance", "--type", "Expense")
	assert.Equal(t, "Created account 6600 Insurance\n", out)

	out = mustRun(t, dir, "accounts", "disable", "6600")
	assert.Equal(t, "Account 6600 disabled\n", out)

	out = mustRun(t, dir, "accounts", "list", "--enabled")
	assert.NotContains(t, out, "Insurance")
	assert.Contains(t, out, "Cash")

	out = mustRun(t, dir, "accounts", "update", "6600", "--name", "Shop Insurance")
	assert.Equal(t, "Updated account 6600 Shop Insurance\n", out)

	out = mustRun(t, dir, "accounts", "delete", "6600")
	assert.Equal(t, "Deleted account 6600 Shop Insurance\n", out)

	_, err := run(t, dir, "accounts", "create", "--code", "1000", "--name", "Dup", "--type", "Asset")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestAccounts_DeleteWithActivity(t *testing.T) {
	dir := project(t)
	mustRun(t, dir, "post", "sale", "--order", "ORD-1", "--total", "20", "--date", "2026-03-14")

	_, err := run(t, dir, "accounts", "delete", "1000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disable")
}

func TestPostSale(t *testing.T) {
	dir := project(t)

	out := mustRun(t, dir, "post", "sale", "--order", "ORD-00041", "--total", "100", "--cost", "60", "--date", "2026-03-14")
	assert.Equal(t, "Posted Order:ORD-00041 (4 lines)\n", out)

	out = mustRun(t, dir, "post", "sale", "--order", "ORD-00041", "--total", "100", "--cost", "60", "--date", "2026-03-14")
	assert.Equal(t, "Order:ORD-00041 already posted\n", out)

	assert.Equal(t, "1000 Cash: 100.00\n", mustRun(t, dir, "balance", "1000"))
	assert.Equal(t, "1200 Inventory: -60.00\n", mustRun(t, dir, "balance", "1200"))

	out = mustRun(t, dir, "lines", "--reference", "Order")
	assert.Contains(t, out, "ORD-00041")
	assert.Contains(t, out, "Sale ORD-00041")
}

func TestPostSale_Invalid(t *testing.T) {
	dir := project(t)
	_, err := run(t, dir, "post", "sale", "--order", "ORD-1", "--total", "10", "--tax", "12")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	assert.Equal(t, "No pending postings\n", mustRun(t, dir, "pending", "list"))
}

func TestPostOtherEvents(t *testing.T) {
	dir := project(t)

	out := mustRun(t, dir, "post", "purchase", "--id", "PO-00001", "--total", "200", "--payout", "2000", "--date", "2026-03-14")
	assert.Equal(t, "Posted PurchaseOrder:PO-00001 (2 lines)\n", out)

	out = mustRun(t, dir, "post", "payment", "--id", "PAY-1", "--direction", "supplier", "--amount", "150", "--date", "2026-03-15")
	assert.Equal(t, "Posted Payment:PAY-1 (2 lines)\n", out)

	out = mustRun(t, dir, "post", "return", "--id", "RET-00001", "--refund", "20", "--restock-cost", "12", "--date", "2026-03-15")
	assert.Equal(t, "Posted Return:RET-00001 (4 lines)\n", out)

	out = mustRun(t, dir, "post", "adjustment", "--id", "ADJ-00001", "--line", "SKU-1:-2:3.50", "--reason", "shrinkage", "--date", "2026-03-15")
	assert.Equal(t, "Posted Adjustment:ADJ-00001 (2 lines)\n", out)

	out = mustRun(t, dir, "post", "adjustment", "--id", "ADJ-00002", "--increase", "5", "--decrease", "5")
	assert.Equal(t, "Nothing to post for Adjustment:ADJ-00002\n", out)

	assert.Equal(t, "2000 Accounts Payable: -50.00\n", mustRun(t, dir, "balance", "2000"))
	assert.Equal(t, "5100 Inventory Adjustments: 7.00\n", mustRun(t, dir, "balance", "5100"))

	_, err := run(t, dir, "post", "adjustment", "--id", "ADJ-3", "--line", "SKU-1:two:3")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	_, err = run(t, dir, "post", "purchase", "--id", "X-1", "--total", "5", "--kind", "gift")
	require.Error(t, err)
}

func TestJournal(t *testing.T) {
	dir := project(t)

	out := mustRun(t, dir, "journal", "create", "--date", "2026-03-14", "--description", "March rent",
		"--debit", "6000=50", "--credit", "1000=50")
	assert.Equal(t, "Created JE-00001 (50.00)\n", out)
	assert.Equal(t, "6000 Rent: 50.00\n", mustRun(t, dir, "balance", "6000"))

	out = mustRun(t, dir, "journal", "list")
	assert.Contains(t, out, "JE-00001")
	assert.Contains(t, out, "March rent")

	out = mustRun(t, dir, "journal", "show", "JE-00001")
	assert.Contains(t, out, "6000")

	out = mustRun(t, dir, "journal", "delete", "JE-00001")
	assert.Equal(t, "Deleted JE-00001\n", out)
	assert.Equal(t, "6000 Rent: 0.00\n", mustRun(t, dir, "balance", "6000"))
	assert.Equal(t, "1000 Cash: 0.00\n", mustRun(t, dir, "balance", "1000"))

	_, err := run(t, dir, "journal", "show", "JE-00001")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	data, err := os.ReadFile(filepath.Join(dir, "audit.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "JE-00001")
}

func TestJournal_Unbalanced(t *testing.T) {
	dir := project(t)
	_, err := run(t, dir, "journal", "create", "--debit", "6000=50", "--credit", "1000=40")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	out := mustRun(t, dir, "journal", "list")
	assert.NotContains(t, out, "JE-")
}

func TestJournal_Reverse(t *testing.T) {
	dir := project(t)
	mustRun(t, dir, "journal", "create", "--date", "2026-03-14", "--debit", "6000=80", "--credit", "1000=80")

	out := mustRun(t, dir, "journal", "reverse", "JE-00001", "--date", "2026-03-20")
	assert.Equal(t, "Reversed JE-00001 with JE-00002\n", out)
	assert.Equal(t, "6000 Rent: 0.00\n", mustRun(t, dir, "balance", "6000"))
}

func TestReports(t *testing.T) {
	dir := project(t)
	mustRun(t, dir, "post", "sale", "--order", "ORD-1", "--total", "100", "--cost", "60", "--date", "2026-03-14")

	out := mustRun(t, dir, "report", "trial-balance")
	assert.Contains(t, out, "160.00")
	assert.NotContains(t, out, "WARNING")

	out = mustRun(t, dir, "report", "income", "--from", "2026-03-01", "--to", "2026-03-31")
	assert.Contains(t, out, "Income statement 2026-03-01 to 2026-03-31")
	assert.Contains(t, out, "Net income")
	assert.Contains(t, out, "40.00")

	out = mustRun(t, dir, "report", "income", "--from", "2026-04-01", "--to", "2026-04-30")
	assert.Contains(t, out, "0.00")
	assert.NotContains(t, out, "Sales Revenue")

	out = mustRun(t, dir, "report", "balance-sheet", "--as-of", "2026-03-31")
	assert.Contains(t, out, "Balance sheet as of 2026-03-31")
	assert.Contains(t, out, "Net income to date")
	assert.NotContains(t, out, "WARNING")

	_, err := run(t, dir, "report", "income", "--from", "2026-03-31", "--to", "2026-03-01")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestImport(t *testing.T) {
	dir := project(t)
	src, err := os.ReadFile(filepath.Join("..", "..", "testdata", "events", "sales-2026-03-14.csv"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "sales-2026-03-14.csv"), src, 0o644))

	out := mustRun(t, dir, "import")
	assert.Contains(t, out, "sales-2026-03-14.csv")

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "sales-2026-03-14.csv"))
	assert.NoError(t, err)
	assert.Equal(t, "1000 Cash: 112.50\n", mustRun(t, dir, "balance", "1000"))
	assert.Equal(t, "1100 Accounts Receivable: 54.00\n", mustRun(t, dir, "balance", "1100"))

	out = mustRun(t, dir, "import")
	assert.Contains(t, out, "No files to import")
}

func TestImport_FromOtherDirectory(t *testing.T) {
	dir := project(t)
	drop := filepath.Join(dir, "terminal-2")
	require.NoError(t, os.MkdirAll(drop, 0o755))
	src, err := os.ReadFile(filepath.Join("..", "..", "testdata", "events", "adjustments-2026-03-14.csv"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(drop, "adjustments-2026-03-14.csv"), src, 0o644))

	out := mustRun(t, dir, "import", "--from", "terminal-2")
	assert.Contains(t, out, "adjustments-2026-03-14.csv")

	_, err = os.Stat(filepath.Join(drop, "processed", "adjustments-2026-03-14.csv"))
	assert.NoError(t, err)
	assert.Equal(t, "1200 Inventory: 3.00\n", mustRun(t, dir, "balance", "1200"))
}

func TestImport_UnknownFormat(t *testing.T) {
	dir := project(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "invoices.csv"), []byte("a,b\n1,2\n"), 0o644))

	out, err := run(t, dir, "import")
	require.Error(t, err)
	assert.Contains(t, out, "no parser")

	_, err = os.Stat(filepath.Join(dir, "import", "invoices.csv"))
	assert.NoError(t, err, "failed files stay in place")
}

func TestPendingAndReconcile(t *testing.T) {
	dir := project(t)

	assert.Equal(t, "No pending postings\n", mustRun(t, dir, "pending", "list"))
	assert.Equal(t, "Posted 0, rescheduled 0, failed 0\n", mustRun(t, dir, "reconcile"))

	_, err := run(t, dir, "pending", "retry", "pend_missing")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	_, err = run(t, dir, "pending", "list", "--status", "stuck")
	require.Error(t, err)
}

func TestSeq(t *testing.T) {
	dir := project(t)

	assert.Equal(t, "PO-00001\n", mustRun(t, dir, "seq", "next", "PO"))
	assert.Equal(t, "PO-00002\n", mustRun(t, dir, "seq", "next", "purchase_order"))
	assert.Equal(t, "RET-00001\n", mustRun(t, dir, "seq", "next", "ret"))

	_, err := run(t, dir, "seq", "next", "INV")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JE, PO, ADJ, RET")
}
