package prompt

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterFence = "---"

// Load parses a prompt file: YAML frontmatter between "---" fences followed
// by a markdown body, or a bare YAML document. The body becomes the system
// template unless the frontmatter sets one.
func Load(source string, data []byte) (*Prompt, error) {
	cfg, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}

	if strings.TrimSpace(cfg.SystemTemplate) == "" {
		cfg.SystemTemplate = strings.TrimSpace(body)
	}
	if cfg.SystemTemplate == "" {
		return nil, fmt.Errorf("prompt %s missing system_template", source)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate prompt %s: %w", source, err)
	}

	return &Prompt{Config: cfg, Source: source}, nil
}

func splitFrontmatter(data []byte) (Config, string, error) {
	text := string(bytes.TrimSpace(data))
	if text == "" {
		return Config{}, "", fmt.Errorf("empty prompt")
	}

	var cfg Config
	rest, fenced := strings.CutPrefix(text, frontmatterFence+"\n")
	if !fenced {
		if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
			return Config{}, "", fmt.Errorf("invalid yaml: %w", err)
		}
		return cfg, "", nil
	}

	front, body, closed := strings.Cut(rest, "\n"+frontmatterFence)
	if !closed {
		return Config{}, "", fmt.Errorf("unterminated frontmatter")
	}
	if err := yaml.Unmarshal([]byte(front), &cfg); err != nil {
		return Config{}, "", fmt.Errorf("invalid frontmatter: %w", err)
	}
	// Drop the remainder of the closing fence line.
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return cfg, body, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Slug) == "" {
		return fmt.Errorf("slug is required")
	}

	templates := cfg.SystemTemplate + "\n" + cfg.UserTemplate
	for _, name := range cfg.Input.RequiredVariables {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !strings.Contains(templates, "{{"+name+"}}") {
			return fmt.Errorf("required variable %q is not used by any template", name)
		}
	}
	return nil
}
