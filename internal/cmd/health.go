package cmd

import (
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/mou514/FinanceMate-sub000/internal/errors"
	"github.com/mou514/FinanceMate-sub000/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify the configuration loads, the store opens and at least one extraction provider is configured.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewInternalError("logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewInternalError("version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		st, cfg, err := openStore(cmd.Context())
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Store check failed", err)
			return
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		start := time.Now()
		if err := st.DB.PingContext(cmd.Context()); err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Store ping failed", err)
			return
		}
		logger.Info("✅ Store reachable", zap.String("driver", st.Driver()), zap.Duration("ping", time.Since(start)))

		pipe, err := buildPipeline(cfg, st, logger, false)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Pipeline check failed", err)
			return
		}
		providers := pipe.Registry.ProviderIDs()
		if len(providers) == 0 {
			logger.Warn("⚠️  No extraction providers configured; uploads will fail")
		} else {
			logger.Info("✅ Extraction providers configured", zap.Strings("providers", providers))
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
