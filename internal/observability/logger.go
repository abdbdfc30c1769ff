package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"

	"github.com/mou514/FinanceMate-sub000/internal/appid"
)

var (
	// CLILogger serves one-shot commands (extract, quota, budget, ...).
	CLILogger *logging.Logger

	// ServerLogger serves the HTTP server and the extraction pipeline.
	ServerLogger *logging.Logger
)

// InitCLILogger sets CLILogger. verbose lowers the level to DEBUG.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatalInit("CLI", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger sets ServerLogger. The "simple" profile writes console
// lines for local runs; any other profile writes JSON records carrying the
// request correlation id.
func InitServerLogger(serviceName, logLevel, profile string, namespace ...string) {
	logger, err := logging.New(serverLoggerConfig(serviceName, logLevel, profile, namespace...))
	if err != nil {
		fatalInit("server", err)
	}
	ServerLogger = logger
}

func serverLoggerConfig(serviceName, logLevel, profile string, namespace ...string) *logging.LoggerConfig {
	cfg := &logging.LoggerConfig{
		DefaultLevel: parseLogLevel(logLevel),
		Service:      serviceName,
		Environment:  environment(),
		StaticFields: map[string]any{},
	}
	if len(namespace) > 0 && namespace[0] != "" {
		cfg.StaticFields["namespace"] = namespace[0]
	}

	stderr := &logging.ConsoleSinkConfig{Stream: "stderr"}
	if strings.EqualFold(strings.TrimSpace(profile), "simple") {
		cfg.Profile = logging.ProfileSimple
		cfg.Sinks = []logging.SinkConfig{{Type: "console", Format: "console", Console: stderr}}
		return cfg
	}

	cfg.Profile = logging.ProfileStructured
	cfg.Sinks = []logging.SinkConfig{{Type: "console", Format: "json", Console: stderr}}
	cfg.Middleware = []logging.MiddlewareConfig{
		{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
	}
	cfg.EnableCaller = true
	cfg.EnableStacktrace = true
	return cfg
}

// environment reads <PREFIX>ENV, e.g. FINANCEMATE_ENV=staging.
func environment() string {
	if env := strings.TrimSpace(os.Getenv(appid.Get().Prefix() + "ENV")); env != "" {
		return env
	}
	return "production"
}

var logLevels = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

func parseLogLevel(level string) string {
	if mapped, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return mapped
	}
	return "INFO"
}

// fatalInit reports a logger that could not be built. There is nothing to
// log through yet, so it goes to stderr with the config-invalid exit code.
func fatalInit(which string, err error) {
	code := foundry.ExitConfigInvalid
	fmt.Fprintf(os.Stderr, "FATAL: initialize %s logger: %v\n", which, err)
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}
	os.Exit(int(code))
}
