package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/appid"
	"github.com/mou514/FinanceMate-sub000/internal/config"
	"github.com/mou514/FinanceMate-sub000/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string

	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo records the ldflags values passed in by main.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   appid.Get().BinaryName,
	Short: appid.Get().Description,
	Long: fmt.Sprintf(`%s - %s

Serve the receipt extraction API, or run the pipeline and its stores from
the command line.`, appid.Get().BinaryName, appid.Get().Description),
	SilenceUsage: true,
}

// Execute runs the command tree; main calls it once.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Config loading touches gofulmen code that emits telemetry; keep it
	// quiet until serve installs the real system.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", configFlagUsage())
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	flags.StringVar(&traceFile, "trace", "", "append provider requests/responses to an NDJSON file")
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
}

func initConfig() {
	identity := appid.Get()
	observability.InitCLILogger(identity.BinaryName, verbose)
	logger := observability.CLILogger

	if traceFile != "" {
		// The trace file stays open for the life of the process.
		if _, err := driver.EnableTracing(traceFile); err != nil {
			logger.Warn("Failed to enable tracing", zap.Error(err))
		} else {
			logger.Debug("Provider tracing enabled", zap.String("file", traceFile))
		}
	}

	v := viper.GetViper()
	config.SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		addConfigSearchPaths(v, identity)
	}
	v.SetEnvPrefix(strings.TrimSuffix(identity.Prefix(), "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		logger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	case errors.As(err, &notFound):
		logger.Debug("No config file found, using defaults and environment variables")
	default:
		logger.Warn("Error reading config file", zap.Error(err))
	}
}

// addConfigSearchPaths looks for config.yaml in the XDG config dir, then
// ./config. Without an XDG dir it falls back to ~/.financemate.yaml.
func addConfigSearchPaths(v *viper.Viper, identity *appid.Identity) {
	if dir := gfconfig.GetAppConfigDir(identity.ConfigName); dir != "" {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Could not find home directory", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName("." + identity.ConfigName)
	}
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")
}

func configFlagUsage() string {
	if path := config.DefaultConfigPath(); path != "" {
		return fmt.Sprintf("config file (default is %s)", path)
	}
	return fmt.Sprintf("config file (default is $HOME/.%s.yaml)", appid.Get().ConfigName)
}
