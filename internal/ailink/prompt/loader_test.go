package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	prompts, err := LoadDefaults()
	require.NoError(t, err)
	require.Len(t, prompts, 3)

	reg, err := NewRegistry(prompts)
	require.NoError(t, err)

	for _, slug := range []string{SlugReceiptVision, SlugReceiptStructure, SlugVoiceExpenses} {
		p, err := reg.Get(slug)
		require.NoError(t, err, slug)
		require.NotEmpty(t, p.Config.SystemTemplate)
		require.NotEmpty(t, p.Config.UserTemplate)
	}
}

func TestRenderReceiptVision(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	p, err := reg.Get(SlugReceiptVision)
	require.NoError(t, err)

	system, user, err := p.Render(map[string]string{"categories": "Groceries, Travel", "today": "2025-03-10"})
	require.NoError(t, err)
	require.Contains(t, system, "exactly one of: Groceries, Travel")
	require.Contains(t, system, "use 2025-03-10")
	require.NotContains(t, system, "{{")
	require.NotEmpty(t, user)

	_, _, err = p.Render(map[string]string{"categories": "Groceries"})
	require.ErrorContains(t, err, "today")

	require.NotNil(t, p.Temperature())
	require.Equal(t, 0.0, *p.Temperature())
	require.Equal(t, 1024, *p.MaxTokens())
}

func TestRenderVoiceConditionals(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	p, err := reg.Get(SlugVoiceExpenses)
	require.NoError(t, err)

	system, _, err := p.Render(map[string]string{"categories": "Other", "local_date": "2025-06-01", "currency": "EUR"})
	require.NoError(t, err)
	require.Contains(t, system, "are in EUR")
	require.Contains(t, system, "2025-06-01")

	system, _, err = p.Render(map[string]string{"categories": "Other", "local_date": "2025-06-01"})
	require.NoError(t, err)
	require.NotContains(t, system, "are in")
	require.NotContains(t, system, "{{")
}

func TestLoadRejectsUnusedRequiredVariable(t *testing.T) {
	_, err := Load("bad.md", []byte("---\nslug: bad\ninput:\n  required_variables: [missing]\n---\nHello\n"))
	require.ErrorContains(t, err, "missing")

	_, err = Load("noslug.md", []byte("---\nname: x\n---\nHello\n"))
	require.ErrorContains(t, err, "slug")
}

func TestLoadRegistryOverrides(t *testing.T) {
	dir := t.TempDir()
	override := "---\nslug: receipt-vision\ninput:\n  required_variables: [categories]\n---\nCustom {{categories}}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipt-vision.md"), []byte(override), 0o600))

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)
	require.Len(t, reg.List(), 3)

	p, err := reg.Get(SlugReceiptVision)
	require.NoError(t, err)
	system, _, err := p.Render(map[string]string{"categories": "A"})
	require.NoError(t, err)
	require.Equal(t, "Custom A", system)
}

func TestRequireReportsMissingSlug(t *testing.T) {
	reg, err := NewRegistry([]*Prompt{{Config: Config{Slug: SlugReceiptVision}, Source: "a.md"}})
	require.NoError(t, err)
	require.NoError(t, Require(reg, SlugReceiptVision))
	require.ErrorContains(t, Require(reg, BuiltinSlugs...), SlugReceiptStructure)

	_, err = NewRegistry([]*Prompt{
		{Config: Config{Slug: "x"}, Source: "a.md"},
		{Config: Config{Slug: "x"}, Source: "b.md"},
	})
	require.ErrorContains(t, err, "duplicate")
}

func TestLoadBareYAMLPrompt(t *testing.T) {
	p, err := Load("bare.yaml", []byte("slug: bare\nsystem_template: Hi {{name}}\ninput:\n  required_variables: [name]\n"))
	require.NoError(t, err)
	require.Equal(t, "bare", p.Config.Slug)

	_, err = Load("open.md", []byte("---\nslug: open\n"))
	require.ErrorContains(t, err, "unterminated")
}

func TestExpandNestedConditionals(t *testing.T) {
	tmpl := "A{{#if x}}B{{#if y}}C{{else}}D{{/if}}{{else}}E{{/if}}F {{z}} {{unknown}}"

	require.Equal(t, "ABCF 1 {{unknown}}", expand(tmpl, map[string]string{"x": "1", "y": "1", "z": "1"}))
	require.Equal(t, "ABDF 2 {{unknown}}", expand(tmpl, map[string]string{"x": "1", "z": "2"}))
	require.Equal(t, "AEF  {{unknown}}", expand(tmpl, map[string]string{"z": ""}))
	require.Equal(t, "open {{ tail", expand("open {{ tail", nil))
}
