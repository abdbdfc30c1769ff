package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mou514/FinanceMate-sub000/internal/core/store"
	"github.com/mou514/FinanceMate-sub000/internal/output"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and reset per-user extraction quotas",
}

var quotaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored quota usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		action, _ := cmd.Flags().GetString("action")

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.QuotaQuery{
			Identifier: strings.TrimSpace(user),
			Action:     strings.TrimSpace(action),
		}
		if query.Identifier == "" {
			query.All = true
		}

		entries, err := db.ListQuotaUsage(cmd.Context(), query)
		if err != nil {
			return err
		}
		return writeReport(cmd, "quota.show", output.QuotaReport(entries, cfg.Quota.Limit, cfg.Quota.Window))
	},
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete stored quota records",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		user, _ := cmd.Flags().GetString("user")
		action, _ := cmd.Flags().GetString("action")
		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		target, err := resolveOutput(cmd, "quota-reset")
		if err != nil {
			return err
		}
		if target.format != output.FormatJSON && target.format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", target.format)
		}

		query := store.QuotaQuery{
			All:        all,
			Identifier: strings.TrimSpace(user),
			Action:     strings.TrimSpace(action),
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !yes && !dryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountQuotaRecords(cmd.Context(), query)
		if err != nil {
			return err
		}

		var deleted int64
		if !dryRun {
			if deleted, err = db.ResetQuota(cmd.Context(), query); err != nil {
				return err
			}
		}

		w, err := target.open()
		if err != nil {
			return err
		}
		defer w.Close() // nolint:errcheck // stdout or a fresh file
		return writeQuotaResetResult(target.format, w, matched, deleted, dryRun)
	},
}

var quotaPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete quota records that no longer fall inside any window",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if olderThan <= 0 {
			olderThan = cfg.Quota.Window
		}
		deleted, err := db.PruneQuotaRecords(cmd.Context(), time.Now().Add(-olderThan))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d quota record(s) older than %s\n", deleted, olderThan)
		return err
	},
}

func writeQuotaResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d quota record(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d quota record(s)\n", deleted, matched)
	return err
}

func init() {
	quotaShowCmd.Flags().String("user", "", "Only show this user (default all users)")
	quotaShowCmd.Flags().String("action", "", "Only show this action")
	addOutputFlags(quotaShowCmd)

	quotaResetCmd.Flags().Bool("all", false, "Reset every user")
	quotaResetCmd.Flags().String("user", "", "Reset a single user")
	quotaResetCmd.Flags().String("action", "", "Only reset this action")
	quotaResetCmd.Flags().Bool("yes", false, "Confirm destructive reset")
	quotaResetCmd.Flags().Bool("dry-run", false, "Show what would be deleted")
	quotaResetCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
	quotaResetCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	quotaResetCmd.Flags().String("out-dir", "", "Unused; accepted for symmetry with other commands")
	_ = quotaResetCmd.Flags().MarkHidden("out-dir")

	quotaPruneCmd.Flags().Duration("older-than", 0, "Age cutoff (default quota.window)")

	quotaCmd.AddCommand(quotaShowCmd)
	quotaCmd.AddCommand(quotaPruneCmd)
	quotaCmd.AddCommand(quotaResetCmd)
	rootCmd.AddCommand(quotaCmd)
}
