package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/appid"
	"github.com/mou514/FinanceMate-sub000/internal/core/store"
	errwrap "github.com/mou514/FinanceMate-sub000/internal/errors"
	"github.com/mou514/FinanceMate-sub000/internal/metrics"
	"github.com/mou514/FinanceMate-sub000/internal/observability"
	"github.com/mou514/FinanceMate-sub000/internal/server"
	"github.com/mou514/FinanceMate-sub000/internal/server/handlers"
	servermw "github.com/mou514/FinanceMate-sub000/internal/server/middleware"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the receipt extraction API with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file re-read (restart to apply pipeline changes)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		identity := appid.Get()
		namespace := identity.TelemetryNamespace()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile, namespace)
		logger := observability.ServerLogger

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}
		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, metricsPort, namespace); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}

		st, _, err := openStore(ctx)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "store initialization failed")
		}

		pipe, err := buildPipeline(cfg, st, logger, true)
		if err != nil {
			_ = st.Close()
			return errwrap.WrapInternal(ctx, err, "pipeline initialization failed")
		}

		host := cfg.Server.Host
		port := cfg.Server.Port

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", host),
			zap.Int("port", port),
			zap.Int("metrics_port", metricsPort),
			zap.Strings("providers", pipe.Registry.ProviderIDs()),
			zap.Int("quota_limit", cfg.Quota.Limit),
			zap.Duration("quota_window", cfg.Quota.Window))

		handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

		health := handlers.NewHealthManager(versionInfo.Version)
		health.RegisterChecker("store", handlers.CheckFunc(func(ctx context.Context) error {
			return st.DB.PingContext(ctx)
		}))
		health.RegisterChecker("providers", handlers.CheckFunc(func(ctx context.Context) error {
			if len(pipe.Registry.ProviderIDs()) == 0 {
				return errwrap.NewInternalError("no extraction providers configured")
			}
			return nil
		}))
		if cfg.Metrics.Enabled {
			health.RegisterChecker("telemetry", handlers.CheckFunc(func(ctx context.Context) error {
				if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
					return errwrap.NewInternalError("telemetry system not initialized")
				}
				return nil
			}))
		}

		deps := server.Deps{
			Receipts: pipe.Processor,
			Expenses: &handlers.ExpenseHandler{
				Expenses:      pipe.Expenses,
				Reader:        st,
				Notifications: st,
			},
			Health:         health,
			MaxUploadBytes: cfg.Receipts.MaxUploadBytes,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			IdleTimeout:    cfg.Server.IdleTimeout,
		}
		if cfg.Throttle.Enabled {
			deps.Throttle = servermw.NewThrottle(cfg.Throttle.RequestsPerSecond, cfg.Throttle.Burst)
		}

		srv := server.New(host, port, deps)
		metrics.SetServerStartTime(time.Now().Unix())

		pruneCtx, stopPrune := context.WithCancel(context.Background())
		go pruneQuotaLoop(pruneCtx, st, cfg.Quota.Window, logger)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Handlers run LIFO: the HTTP server stops first, the logger flushes last.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			stopPrune()
			if err := observability.ShutdownMetrics(); err != nil {
				logger.Warn("Metrics exporter stop failed", zap.Error(err))
			}
			if err := st.Close(); err != nil {
				logger.Warn("Store close failed", zap.Error(err))
			}
			if err := pipe.Close(); err != nil {
				logger.Warn("Notification publisher close failed", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: re-reading config file")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					logger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}
			if _, err := loadConfig(ctx); err != nil {
				logger.Error("Reloaded config is invalid", zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}

			logger.Info("Configuration re-read; restart to apply pipeline changes",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...",
				zap.String("host", host),
				zap.Int("port", port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}

		return nil
	},
}

const quotaPruneInterval = time.Hour

// pruneQuotaLoop drops quota records older than one window so the table
// stays proportional to active users.
func pruneQuotaLoop(ctx context.Context, st *store.Store, window time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(quotaPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			deleted, err := st.PruneQuotaRecords(ctx, now.Add(-window))
			if err != nil {
				logger.Warn("Quota prune failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Debug("Pruned quota records", zap.Int64("deleted", deleted))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
