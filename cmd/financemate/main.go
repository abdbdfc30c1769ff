// Command financemate serves the receipt extraction API and its operator CLI.
package main

import (
	"github.com/mou514/FinanceMate-sub000/internal/cmd"
)

// Set via -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=...".
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		cmd.Exit("Command execution failed", err)
	}
}
