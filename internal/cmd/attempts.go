package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mou514/FinanceMate-sub000/internal/core/store"
	"github.com/mou514/FinanceMate-sub000/internal/output"
)

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Inspect the extraction audit log",
}

var attemptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent extraction attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		provider, _ := cmd.Flags().GetString("provider")
		failed, _ := cmd.Flags().GetBool("failed")
		limit, _ := cmd.Flags().GetInt("limit")

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		attempts, err := db.ListExtractionAttempts(cmd.Context(), store.AttemptQuery{
			Identifier: strings.TrimSpace(user),
			Provider:   strings.TrimSpace(provider),
			FailedOnly: failed,
			Limit:      limit,
		})
		if err != nil {
			return err
		}
		return writeReport(cmd, "attempts.list", output.AttemptReport(attempts))
	},
}

func init() {
	attemptsListCmd.Flags().String("user", "", "Only show this user")
	attemptsListCmd.Flags().String("provider", "", "Only show this provider")
	attemptsListCmd.Flags().Bool("failed", false, "Only show failed attempts")
	attemptsListCmd.Flags().Int("limit", 50, "Maximum number of attempts")
	addOutputFlags(attemptsListCmd)

	attemptsCmd.AddCommand(attemptsListCmd)
	rootCmd.AddCommand(attemptsCmd)
}
