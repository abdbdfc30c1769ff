package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mou514/FinanceMate-sub000/internal/output"
)

var expensesCmd = &cobra.Command{
	Use:   "expenses",
	Short: "List committed expenses",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		expenses, err := db.ListExpenses(cmd.Context(), strings.TrimSpace(user), limit)
		if err != nil {
			return err
		}
		return writeReport(cmd, "expenses", output.ExpenseReport(expenses))
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List budget notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		unread, _ := cmd.Flags().GetBool("unread")
		limit, _ := cmd.Flags().GetInt("limit")

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		notifications, err := db.ListNotifications(cmd.Context(), strings.TrimSpace(user), unread, limit)
		if err != nil {
			return err
		}
		return writeReport(cmd, "notifications", output.NotificationReport(notifications))
	},
}

func init() {
	expensesCmd.Flags().String("user", localUser, "User id")
	expensesCmd.Flags().Int("limit", 50, "Maximum number of expenses")
	addOutputFlags(expensesCmd)

	notificationsCmd.Flags().String("user", localUser, "User id")
	notificationsCmd.Flags().Bool("unread", false, "Only unread notifications")
	notificationsCmd.Flags().Int("limit", 50, "Maximum number of notifications")
	addOutputFlags(notificationsCmd)

	rootCmd.AddCommand(expensesCmd)
	rootCmd.AddCommand(notificationsCmd)
}
