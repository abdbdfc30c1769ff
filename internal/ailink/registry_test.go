package ailink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/prompt"
)

func testPrompts(t *testing.T) prompt.Registry {
	t.Helper()
	reg, err := prompt.DefaultRegistry()
	require.NoError(t, err)
	return reg
}

func testConfig() Config {
	return Config{
		DefaultProvider: "primary",
		AudioProvider:   "voice",
		Providers: map[string]ProviderInstanceConfig{
			"primary": {
				Enabled:    true,
				AIProvider: "openai",
				Models:     map[string]string{ModelReceipt: "gpt-vision"},
				Credentials: []CredentialConfig{
					{Enabled: true, Label: "backup", APIKey: "key-low", Priority: 1},
					{Enabled: true, Label: "main", APIKey: "key-high", Priority: 10},
					{Enabled: false, Label: "off", APIKey: "key-off", Priority: 99},
					{Enabled: true, Label: "blank", APIKey: "  ", Priority: 50},
					{Enabled: true, Label: "second-low", APIKey: "key-low-2", Priority: 1},
				},
			},
			"grok":   {Enabled: true, AIProvider: "xai", Credentials: []CredentialConfig{{Enabled: true, APIKey: "xk"}}},
			"claude": {Enabled: false, AIProvider: "anthropic"},
			"scan":   {Enabled: true, AIProvider: "ocr", OCR: OCRConfig{APIKey: "ocr-key", Engine: 1}},
			"voice":  {Enabled: true, AIProvider: "openai", Models: map[string]string{ModelAudio: "gpt-audio"}},
		},
	}
}

func TestCredentialsForOrdersByPriority(t *testing.T) {
	creds := credentialsFor(testConfig().Providers["primary"])
	require.Equal(t, CredentialSet{"key-high", "key-low", "key-low-2"}, creds)
}

func TestResolveReceiptPrefersUserChoice(t *testing.T) {
	reg := NewRegistry(testConfig(), testPrompts(t))

	p, err := reg.ResolveReceipt("grok")
	require.NoError(t, err)
	require.Equal(t, "grok", p.ID)
	require.Equal(t, driver.KindXAI, p.Kind)
	require.Equal(t, "grok-2-vision-1212", p.Extractor.Model())

	// a kind name works too
	p, err = reg.ResolveReceipt("xai")
	require.NoError(t, err)
	require.Equal(t, "grok", p.ID)

	// disabled or unknown preferences fall back to the default
	for _, pref := range []string{"claude", "anthropic", "nope", ""} {
		p, err = reg.ResolveReceipt(pref)
		require.NoError(t, err, pref)
		require.Equal(t, "primary", p.ID, pref)
		require.Equal(t, "gpt-vision", p.Extractor.Model())
		require.Len(t, p.Credentials, 3)
	}
}

func TestResolveReceiptCachesExtractors(t *testing.T) {
	reg := NewRegistry(testConfig(), testPrompts(t))
	a, err := reg.ResolveReceipt("scan")
	require.NoError(t, err)
	b, err := reg.ResolveReceipt("scan")
	require.NoError(t, err)
	require.Same(t, a.Extractor, b.Extractor)
	require.Equal(t, driver.KindOCR, a.Extractor.Kind())
	require.Empty(t, a.Credentials)
}

func TestResolveReceiptDefaultErrors(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultProvider = "claude"
	_, err := NewRegistry(cfg, testPrompts(t)).ResolveReceipt("")
	require.ErrorContains(t, err, "disabled")

	cfg.DefaultProvider = "missing"
	_, err = NewRegistry(cfg, testPrompts(t)).ResolveReceipt("")
	require.ErrorContains(t, err, "not configured")

	_, err = NewRegistry(Config{}, testPrompts(t)).ResolveReceipt("")
	require.ErrorContains(t, err, "no enabled providers")

	cfg = Config{Providers: map[string]ProviderInstanceConfig{"bad": {Enabled: true, AIProvider: "gemini"}}}
	_, err = NewRegistry(cfg, testPrompts(t)).ResolveReceipt("")
	require.ErrorContains(t, err, "gemini")
}

func TestResolveAudio(t *testing.T) {
	reg := NewRegistry(testConfig(), testPrompts(t))

	p, err := reg.ResolveAudio("grok")
	require.NoError(t, err)
	require.Equal(t, "voice", p.ID)
	require.Equal(t, "gpt-audio", p.Extractor.Model())

	p, err = reg.ResolveAudio("primary")
	require.NoError(t, err)
	require.Equal(t, "primary", p.ID)
	require.Equal(t, defaultAudioModel, p.Extractor.Model())

	cfg := Config{Providers: map[string]ProviderInstanceConfig{"grok": {Enabled: true, AIProvider: "xai"}}}
	_, err = NewRegistry(cfg, testPrompts(t)).ResolveAudio("")
	require.ErrorContains(t, err, "no audio-capable provider")
}

func TestProviderIDs(t *testing.T) {
	reg := NewRegistry(testConfig(), nil)
	require.Equal(t, []string{"grok", "primary", "scan", "voice"}, reg.ProviderIDs())
}
