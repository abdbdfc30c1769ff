package ailink

import "time"

// Config defines extraction provider configuration.
type Config struct {
	// DefaultProvider is the provider instance used when a user has no preference.
	DefaultProvider string `mapstructure:"default_provider"`

	// AudioProvider handles voice recordings when the resolved provider cannot.
	AudioProvider string `mapstructure:"audio_provider"`

	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// CredentialTimeout bounds a single attempt with one credential.
	CredentialTimeout time.Duration `mapstructure:"credential_timeout"`

	// PromptsDir allows operators to override the built-in prompt set.
	PromptsDir string `mapstructure:"prompts_dir"`

	Debug DebugConfig `mapstructure:"debug"`

	// Providers is a set of provider instances keyed by a user-defined id (slug).
	// Each instance declares its underlying provider type via AIProvider.
	Providers map[string]ProviderInstanceConfig `mapstructure:"providers"`
}

type DebugConfig struct {
	CaptureRawEnabled  bool `mapstructure:"capture_raw_enabled"`
	CaptureRawMaxBytes int  `mapstructure:"capture_raw_max_bytes"`
}

// ProviderInstanceConfig defines a configured provider instance (e.g. "receipts-openai").
type ProviderInstanceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// AIProvider is the driver identifier: openai, xai, anthropic or ocr.
	AIProvider string `mapstructure:"ai_provider"`

	BaseURL string `mapstructure:"base_url"`

	// Models maps a purpose (receipt, audio, structure) to a model id.
	Models map[string]string `mapstructure:"models"`

	// OCR configures the recognition stage for ocr providers. The structuring
	// stage uses BaseURL, Models["structure"] and Credentials.
	OCR OCRConfig `mapstructure:"ocr"`

	// Credentials are tried in priority order until one succeeds.
	Credentials []CredentialConfig `mapstructure:"credentials"`
}

// OCRConfig configures the OCR stage of a two-stage provider.
type OCRConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Language string `mapstructure:"language"`
	Engine   int    `mapstructure:"engine"`
}

// CredentialConfig is a single credential for a provider instance.
type CredentialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Label    string `mapstructure:"label"`
	APIKey   string `mapstructure:"api_key"`
	Priority int    `mapstructure:"priority"`
}
