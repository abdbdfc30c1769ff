package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/core/engine"
	"github.com/mou514/FinanceMate-sub000/internal/output"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage per-user extraction settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's settings and effective categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		user = strings.TrimSpace(user)

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		settings, err := db.GetUserSettings(cmd.Context(), user)
		if err != nil {
			return err
		}
		if settings == nil {
			settings = &core.UserSettings{UserID: user}
		}
		custom, err := db.ListCustomCategories(cmd.Context(), user)
		if err != nil {
			return err
		}

		categories := engine.MergeCategories(cfg.Receipts.DefaultCategories, custom)
		return writeReport(cmd, "settings.show", output.SettingsReport(*settings, categories))
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a user's preferred provider or default currency",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		user = strings.TrimSpace(user)
		if user == "" {
			return errors.New("--user must not be empty")
		}

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		current, err := db.GetUserSettings(cmd.Context(), user)
		if err != nil {
			return err
		}
		settings := core.UserSettings{UserID: user}
		if current != nil {
			settings = *current
		}

		if cmd.Flags().Changed("provider") {
			provider, _ := cmd.Flags().GetString("provider")
			provider = strings.TrimSpace(provider)
			if provider != "" {
				if _, ok := cfg.AILink.Providers[provider]; !ok {
					return fmt.Errorf("unknown provider %q", provider)
				}
			}
			settings.PreferredProvider = provider
		}
		if cmd.Flags().Changed("currency") {
			currency, _ := cmd.Flags().GetString("currency")
			settings.DefaultCurrency = strings.ToUpper(strings.TrimSpace(currency))
		}

		if err := db.UpsertUserSettings(cmd.Context(), settings); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Settings saved for %s\n", user)
		return err
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage custom expense categories",
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <name>...",
	Short: "Add custom categories for a user",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		user = strings.TrimSpace(user)
		if user == "" {
			return errors.New("--user must not be empty")
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		for _, name := range args {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if err := db.AddCategory(cmd.Context(), user, name); err != nil {
				return fmt.Errorf("add %q: %w", name, err)
			}
		}
		return nil
	},
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the categories offered to extractors for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		custom, err := db.ListCustomCategories(cmd.Context(), strings.TrimSpace(user))
		if err != nil {
			return err
		}
		merged := engine.MergeCategories(cfg.Receipts.DefaultCategories, custom)

		report := output.Report{
			Title:   "Categories",
			Header:  []string{"Category"},
			Payload: merged,
		}
		for _, c := range merged {
			report.Rows = append(report.Rows, []string{c})
		}
		return writeReport(cmd, "categories.list", report)
	},
}

func init() {
	settingsShowCmd.Flags().String("user", localUser, "User id")
	addOutputFlags(settingsShowCmd)
	settingsSetCmd.Flags().String("user", localUser, "User id")
	settingsSetCmd.Flags().String("provider", "", "Preferred provider id (empty clears)")
	settingsSetCmd.Flags().String("currency", "", "Default currency code (empty clears)")

	categoriesAddCmd.Flags().String("user", localUser, "User id")
	categoriesListCmd.Flags().String("user", localUser, "User id")
	addOutputFlags(categoriesListCmd)

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	categoriesCmd.AddCommand(categoriesAddCmd)
	categoriesCmd.AddCommand(categoriesListCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(categoriesCmd)
}
