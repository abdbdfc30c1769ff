package prompt

// Config describes a prompt definition loaded from YAML frontmatter.
type Config struct {
	Slug           string         `yaml:"slug" json:"slug"`
	Name           string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Version        string         `yaml:"version,omitempty" json:"version,omitempty"`
	Input          InputSpec      `yaml:"input,omitempty" json:"input,omitempty"`
	SystemTemplate string         `yaml:"system_template,omitempty" json:"system_template,omitempty"`
	UserTemplate   string         `yaml:"user_template,omitempty" json:"user_template,omitempty"`
	ProviderHints  map[string]any `yaml:"provider_hints,omitempty" json:"provider_hints,omitempty"`
}

// InputSpec defines prompt input requirements.
type InputSpec struct {
	RequiredVariables []string `yaml:"required_variables,omitempty" json:"required_variables,omitempty"`
	OptionalVariables []string `yaml:"optional_variables,omitempty" json:"optional_variables,omitempty"`
	AcceptsImages     bool     `yaml:"accepts_images,omitempty" json:"accepts_images,omitempty"`
	AcceptsAudio      bool     `yaml:"accepts_audio,omitempty" json:"accepts_audio,omitempty"`
}

// Prompt wraps a validated prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}

// Built-in prompt slugs.
const (
	SlugReceiptVision    = "receipt-vision"
	SlugReceiptStructure = "receipt-structure"
	SlugVoiceExpenses    = "voice-expenses"
)
