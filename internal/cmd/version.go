package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mou514/FinanceMate-sub000/internal/server/handlers"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for commit, Go, gofulmen and Crucible versions, or --json for the /version payload.",
	RunE: func(cmd *cobra.Command, args []string) error {
		extended, _ := cmd.Flags().GetBool("extended")
		asJSON, _ := cmd.Flags().GetBool("json")

		handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
		v := handlers.CurrentVersion()
		out := cmd.OutOrStdout()

		switch {
		case asJSON:
			payload, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(payload))
			return err
		case extended:
			_, err := fmt.Fprintf(out, "%s %s\nCommit: %s\nBuilt: %s\nGo: %s\n\nGofulmen: %s\nCrucible: %s\n",
				v.App.Name, v.App.Version, v.App.Commit, v.App.BuildDate, v.App.GoVersion,
				v.Dependencies.Gofulmen, v.Dependencies.Crucible)
			return err
		default:
			_, err := fmt.Fprintf(out, "%s %s\n", v.App.Name, v.App.Version)
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("extended", "e", false, "show extended version information")
	versionCmd.Flags().Bool("json", false, "print the version payload as JSON")
}
