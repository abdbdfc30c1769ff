package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/output"
)

func newOutputCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "probe"}
	addOutputFlags(c)
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestResolveOutputDefaultsToStdoutTable(t *testing.T) {
	target, err := resolveOutput(newOutputCmd(t), "drafts")
	require.NoError(t, err)
	require.Equal(t, output.FormatTable, target.format)
	require.Empty(t, target.path)

	target, err = resolveOutput(newOutputCmd(t, "--out", "-"), "drafts")
	require.NoError(t, err)
	require.Empty(t, target.path)
}

func TestResolveOutputDirUsesCommandName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	target, err := resolveOutput(newOutputCmd(t, "--out-dir", dir, "--output-format", "md"), "budgets")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "budgets.md"), target.path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "write probe must be removed")
}

func TestResolveOutputRejectsConflictingTargets(t *testing.T) {
	_, err := resolveOutput(newOutputCmd(t, "--out", "a.json", "--out-dir", "b"), "x")
	require.ErrorContains(t, err, "mutually exclusive")

	_, err = resolveOutput(newOutputCmd(t, "--output-format", "xml"), "x")
	require.Error(t, err)
}

func TestWriteReportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "quota.json")
	c := newOutputCmd(t, "--out", path, "--output-format", "json")
	require.NoError(t, writeReport(c, "quota", output.Report{
		Header: []string{"user", "used"},
		Rows:   [][]string{{"u1", "3"}},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"user": "u1"`)
}
