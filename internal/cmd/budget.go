package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/output"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage category budgets",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set <category> <limit>",
	Short: "Create or update a category budget",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		threshold, _ := cmd.Flags().GetInt("threshold")
		currency, _ := cmd.Flags().GetString("currency")

		budget, err := parseBudget(user, args[0], args[1], threshold, currency)
		if err != nil {
			return err
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.UpsertBudget(cmd.Context(), budget); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Budget for %s set to %s (alert at %d%%)\n",
			budget.Category, budget.Limit.StringFixed(2), budget.AlertThresholdPercent)
		return err
	},
}

var budgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's budgets",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		budgets, err := db.ListBudgets(cmd.Context(), strings.TrimSpace(user))
		if err != nil {
			return err
		}
		return writeReport(cmd, "budget.list", output.BudgetReport(budgets))
	},
}

func parseBudget(user, category, limit string, threshold int, currency string) (core.BudgetSnapshot, error) {
	user = strings.TrimSpace(user)
	category = strings.TrimSpace(category)
	if user == "" {
		return core.BudgetSnapshot{}, errors.New("--user must not be empty")
	}
	if category == "" {
		return core.BudgetSnapshot{}, errors.New("category must not be empty")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(limit))
	if err != nil {
		return core.BudgetSnapshot{}, fmt.Errorf("invalid limit %q: %w", limit, err)
	}
	if !amount.IsPositive() {
		return core.BudgetSnapshot{}, errors.New("limit must be positive")
	}
	if threshold < 1 || threshold > 100 {
		return core.BudgetSnapshot{}, fmt.Errorf("--threshold must be within 1..100, got %d", threshold)
	}
	return core.BudgetSnapshot{
		UserID:                user,
		Category:              category,
		Limit:                 amount,
		Currency:              strings.ToUpper(strings.TrimSpace(currency)),
		AlertThresholdPercent: threshold,
	}, nil
}

func init() {
	budgetSetCmd.Flags().String("user", localUser, "Budget owner")
	budgetSetCmd.Flags().Int("threshold", core.DefaultAlertThresholdPercent, "Alert when spend reaches this percent of the limit")
	budgetSetCmd.Flags().String("currency", "", "Currency of the limit")

	budgetListCmd.Flags().String("user", localUser, "Budget owner")
	addOutputFlags(budgetListCmd)

	budgetCmd.AddCommand(budgetSetCmd)
	budgetCmd.AddCommand(budgetListCmd)
	rootCmd.AddCommand(budgetCmd)
}
