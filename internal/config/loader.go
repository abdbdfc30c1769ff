// Package config provides centralized configuration management for FinanceMate.
//
// Layers, lowest precedence first: built-in defaults (SetDefaults), the
// optional YAML config file read by viper, a local .env file, FINANCEMATE_*
// environment variables, and runtime overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mou514/FinanceMate-sub000/internal/appid"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// DefaultCategories is the built-in category vocabulary offered to extractors.
var DefaultCategories = []string{
	"Food & Dining",
	"Groceries",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Health",
	"Travel",
	"Education",
	"Other",
}

// SetDefaults registers default configuration values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("ailink.default_provider", "openai")
	v.SetDefault("ailink.audio_provider", "openai")
	v.SetDefault("ailink.default_timeout", "60s")
	v.SetDefault("ailink.credential_timeout", "45s")

	v.SetDefault("receipts.max_dimension", 2000)
	v.SetDefault("receipts.max_upload_bytes", 10<<20)
	v.SetDefault("receipts.default_categories", DefaultCategories)
	v.SetDefault("receipts.default_currency", "USD")

	v.SetDefault("quota.action", "receipt_extraction")
	v.SetDefault("quota.limit", 10)
	v.SetDefault("quota.window", "24h")

	v.SetDefault("budget.default_threshold_percent", 80)

	v.SetDefault("throttle.enabled", true)
	v.SetDefault("throttle.requests_per_second", 2.0)
	v.SetDefault("throttle.burst", 5)

	v.SetDefault("notifications.nats_url", "")
	v.SetDefault("notifications.subject", "financemate.notifications")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("health.enabled", true)
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// Load builds the typed configuration from v plus the environment.
//
// This function is safe to call multiple times (e.g., for config reload).
func Load(ctx context.Context, v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	_ = ctx

	if v == nil {
		v = viper.New()
		SetDefaults(v)
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	merged := v.AllSettings()

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if envOverrides == nil {
		envOverrides = map[string]any{}
	}
	applyAILinkDynamicEnvOverrides(appid.Get().Prefix(), envOverrides)

	mergeInto(merged, envOverrides)
	for _, overrides := range runtimeOverrides {
		mergeInto(merged, overrides)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate checks values that would otherwise fail far from their source.
func (c *Config) Validate() error {
	if c.Quota.Limit <= 0 {
		return fmt.Errorf("quota.limit must be positive, got %d", c.Quota.Limit)
	}
	if c.Quota.Window <= 0 {
		return fmt.Errorf("quota.window must be positive, got %s", c.Quota.Window)
	}
	if c.Receipts.MaxDimension <= 0 {
		return fmt.Errorf("receipts.max_dimension must be positive, got %d", c.Receipts.MaxDimension)
	}
	if pct := c.Budget.DefaultThresholdPercent; pct < 1 || pct > 100 {
		return fmt.Errorf("budget.default_threshold_percent must be within 1..100, got %d", pct)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// envBindings maps FINANCEMATE_<name> variables to dotted config keys.
// Durations and the category list travel as strings and are converted by the
// decode hooks.
var envBindings = []struct{ name, key, kind string }{
	{"HOST", "server.host", "str"},
	{"PORT", "server.port", "int"},
	{"READ_TIMEOUT", "server.read_timeout", "str"},
	{"WRITE_TIMEOUT", "server.write_timeout", "str"},
	{"IDLE_TIMEOUT", "server.idle_timeout", "str"},
	{"SHUTDOWN_TIMEOUT", "server.shutdown_timeout", "str"},
	{"LOG_LEVEL", "logging.level", "str"},
	{"LOG_PROFILE", "logging.profile", "str"},
	{"DB_DRIVER", "store.driver", "str"},
	{"DB_PATH", "store.path", "str"},
	{"DB_URL", "store.url", "str"},
	{"DB_AUTH_TOKEN", "store.auth_token", "str"},
	{"AILINK_DEFAULT_PROVIDER", "ailink.default_provider", "str"},
	{"AILINK_AUDIO_PROVIDER", "ailink.audio_provider", "str"},
	{"AILINK_DEFAULT_TIMEOUT", "ailink.default_timeout", "str"},
	{"AILINK_CREDENTIAL_TIMEOUT", "ailink.credential_timeout", "str"},
	{"AILINK_PROMPTS_DIR", "ailink.prompts_dir", "str"},
	{"AILINK_DEBUG_CAPTURE_RAW_ENABLED", "ailink.debug.capture_raw_enabled", "bool"},
	{"AILINK_DEBUG_CAPTURE_RAW_MAX_BYTES", "ailink.debug.capture_raw_max_bytes", "int"},
	{"RECEIPTS_MAX_DIMENSION", "receipts.max_dimension", "int"},
	{"RECEIPTS_MAX_UPLOAD_BYTES", "receipts.max_upload_bytes", "int"},
	{"RECEIPTS_DEFAULT_CATEGORIES", "receipts.default_categories", "str"},
	{"RECEIPTS_DEFAULT_CURRENCY", "receipts.default_currency", "str"},
	{"QUOTA_ACTION", "quota.action", "str"},
	{"QUOTA_LIMIT", "quota.limit", "int"},
	{"QUOTA_WINDOW", "quota.window", "str"},
	{"BUDGET_DEFAULT_THRESHOLD_PERCENT", "budget.default_threshold_percent", "int"},
	{"THROTTLE_ENABLED", "throttle.enabled", "bool"},
	{"THROTTLE_REQUESTS_PER_SECOND", "throttle.requests_per_second", "str"},
	{"THROTTLE_BURST", "throttle.burst", "int"},
	{"NATS_URL", "notifications.nats_url", "str"},
	{"NATS_SUBJECT", "notifications.subject", "str"},
	{"METRICS_ENABLED", "metrics.enabled", "bool"},
	{"METRICS_PORT", "metrics.port", "int"},
	{"HEALTH_ENABLED", "health.enabled", "bool"},
	{"DEBUG_ENABLED", "debug.enabled", "bool"},
	{"DEBUG_PPROF_ENABLED", "debug.pprof_enabled", "bool"},
}

func getEnvSpecs() []EnvVarSpec {
	prefix := appid.Get().Prefix()
	specs := make([]EnvVarSpec, 0, len(envBindings))
	for _, b := range envBindings {
		spec := EnvVarSpec{Name: prefix + b.name, Path: strings.Split(b.key, "."), Type: EnvString}
		switch b.kind {
		case "int":
			spec.Type = EnvInt
		case "bool":
			spec.Type = EnvBool
		}
		specs = append(specs, spec)
	}
	return specs
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.Get().ConfigName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appid.Get().ConfigName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	id := appid.Get()
	dataDir := gfconfig.GetAppDataDir(id.ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + id.BinaryName + ".db"
	}
	return filepath.Join(dataDir, id.BinaryName+".db")
}

// mergeInto deep-merges src over dst. Nested maps merge key by key and
// slices of maps merge element by element so partial credential overrides
// keep the fields that came from the config file.
func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		key = strings.ToLower(key)
		existing, ok := dst[key]
		if !ok {
			dst[key] = value
			continue
		}
		dst[key] = mergeValue(existing, value)
	}
}

func mergeValue(existing, value any) any {
	switch typed := value.(type) {
	case map[string]any:
		if base, ok := existing.(map[string]any); ok {
			mergeInto(base, typed)
			return base
		}
	case []any:
		if base, ok := existing.([]any); ok {
			out := make([]any, max(len(base), len(typed)))
			copy(out, base)
			for i, item := range typed {
				if i < len(base) {
					out[i] = mergeValue(base[i], item)
				} else {
					out[i] = item
				}
			}
			return out
		}
	}
	return value
}

func applyAILinkDynamicEnvOverrides(prefix string, envOverrides map[string]any) {
	providerPrefix := prefix + "AILINK_PROVIDERS_"

	for _, item := range os.Environ() {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		if strings.HasPrefix(key, providerPrefix) {
			applyAILinkProviderOverride(envOverrides, key[len(providerPrefix):], value)
		}
	}
}

// applyAILinkProviderOverride maps keys such as
// RECEIPTS_OPENAI_CREDENTIALS_0_API_KEY onto ailink.providers.receipts-openai.credentials[0].api_key.
func applyAILinkProviderOverride(envOverrides map[string]any, raw string, value string) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) < 2 {
		return
	}

	section := -1
	for i, part := range parts {
		switch part {
		case "ENABLED", "AI", "BASE", "MODELS", "CREDENTIALS", "OCR":
			section = i
		}
		if section != -1 {
			break
		}
	}
	if section <= 0 {
		return
	}

	providerID := strings.ToLower(strings.Join(parts[:section], "-"))
	if providerID == "" {
		return
	}

	ailink := ensureMap(envOverrides, "ailink")
	providers := ensureMap(ailink, "providers")
	provider := ensureMap(providers, providerID)

	value = strings.TrimSpace(value)
	rest := parts[section:]
	switch {
	case len(rest) == 1 && rest[0] == "ENABLED":
		provider["enabled"] = strings.EqualFold(value, "true")
	case len(rest) == 2 && rest[0] == "AI" && rest[1] == "PROVIDER":
		provider["ai_provider"] = strings.ToLower(value)
	case len(rest) == 2 && rest[0] == "BASE" && rest[1] == "URL":
		provider["base_url"] = value
	case len(rest) >= 2 && rest[0] == "MODELS":
		modelKey := strings.ToLower(strings.Join(rest[1:], "_"))
		models := ensureMap(provider, "models")
		models[modelKey] = value
	case len(rest) >= 2 && rest[0] == "OCR":
		field := strings.ToLower(strings.Join(rest[1:], "_"))
		ocr := ensureMap(provider, "ocr")
		if field == "engine" {
			if parsed, err := strconv.Atoi(value); err == nil {
				ocr[field] = parsed
				return
			}
		}
		ocr[field] = value
	case len(rest) >= 3 && rest[0] == "CREDENTIALS":
		idx, err := strconv.Atoi(rest[1])
		if err != nil || idx < 0 {
			return
		}
		field := strings.ToLower(strings.Join(rest[2:], "_"))
		if field == "" {
			return
		}

		creds := ensureSlice(provider, "credentials", idx+1)
		cred := ensureSliceMap(creds, idx)
		switch field {
		case "priority":
			if parsed, err := strconv.Atoi(value); err == nil {
				cred[field] = parsed
			} else {
				cred[field] = value
			}
		case "enabled":
			cred[field] = strings.EqualFold(value, "true")
		case "api_key":
			cred[field] = value
			if _, ok := cred["enabled"]; !ok {
				cred["enabled"] = true
			}
		default:
			cred[field] = value
		}
	}
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if parent == nil {
		return map[string]any{}
	}
	if existing, ok := parent[key]; ok {
		if typed, ok := existing.(map[string]any); ok {
			return typed
		}
	}
	next := map[string]any{}
	parent[key] = next
	return next
}

func ensureSlice(parent map[string]any, key string, length int) []any {
	var existing []any
	if raw, ok := parent[key]; ok {
		existing, _ = raw.([]any)
	}
	for len(existing) < length {
		existing = append(existing, map[string]any{})
	}
	parent[key] = existing
	return existing
}

func ensureSliceMap(slice []any, idx int) map[string]any {
	if idx < 0 || idx >= len(slice) {
		return map[string]any{}
	}
	if typed, ok := slice[idx].(map[string]any); ok {
		return typed
	}
	m := map[string]any{}
	slice[idx] = m
	return m
}
