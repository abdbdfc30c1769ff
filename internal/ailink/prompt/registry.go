package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed prompts/*.md
var builtinFS embed.FS

// BuiltinSlugs are the prompts the extraction drivers render. A registry
// missing any of them cannot serve every provider kind.
var BuiltinSlugs = []string{SlugReceiptVision, SlugReceiptStructure, SlugVoiceExpenses}

// Registry provides access to prompt definitions.
type Registry interface {
	Get(slug string) (*Prompt, error)
	List() []*Prompt
}

// InMemoryRegistry stores prompts by slug.
type InMemoryRegistry struct {
	bySlug map[string]*Prompt
}

// NewRegistry indexes prompts by slug. Duplicate slugs are an error; use
// LoadRegistry to layer overrides over the built-in set.
func NewRegistry(prompts []*Prompt) (*InMemoryRegistry, error) {
	reg := &InMemoryRegistry{bySlug: make(map[string]*Prompt, len(prompts))}
	for _, p := range prompts {
		if p == nil {
			continue
		}
		slug := strings.TrimSpace(p.Config.Slug)
		if slug == "" {
			return nil, fmt.Errorf("prompt %s missing slug", p.Source)
		}
		if prior, ok := reg.bySlug[slug]; ok {
			return nil, fmt.Errorf("duplicate prompt slug %q in %s and %s", slug, prior.Source, p.Source)
		}
		reg.bySlug[slug] = p
	}
	return reg, nil
}

func (r *InMemoryRegistry) Get(slug string) (*Prompt, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry not configured")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("prompt slug is required")
	}
	p, ok := r.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("prompt %q not found", slug)
	}
	return p, nil
}

// List returns prompts sorted by slug.
func (r *InMemoryRegistry) List() []*Prompt {
	if r == nil {
		return nil
	}
	out := make([]*Prompt, 0, len(r.bySlug))
	for _, p := range r.bySlug {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Config.Slug < out[j].Config.Slug })
	return out
}

// Require reports the first of slugs the registry cannot resolve.
func Require(reg Registry, slugs ...string) error {
	for _, slug := range slugs {
		if _, err := reg.Get(slug); err != nil {
			return err
		}
	}
	return nil
}

// LoadDefaults parses the embedded prompt set.
func LoadDefaults() ([]*Prompt, error) {
	return loadFS(builtinFS, "prompts", "builtin:")
}

// LoadFromDir parses every *.md prompt in dir.
func LoadFromDir(dir string) ([]*Prompt, error) {
	return loadFS(os.DirFS(dir), ".", strings.TrimSuffix(dir, "/")+"/")
}

func loadFS(fsys fs.FS, dir, sourcePrefix string) ([]*Prompt, error) {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	sort.Strings(matches)

	prompts := make([]*Prompt, 0, len(matches))
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", name, err)
		}
		p, err := Load(sourcePrefix+path.Base(name), data)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

// DefaultRegistry builds a registry from the embedded prompts.
func DefaultRegistry() (Registry, error) {
	return LoadRegistry("")
}

// LoadRegistry layers prompts from dir over the embedded set: a file whose
// slug matches a built-in replaces it, others are added. The result must
// still provide every built-in slug.
func LoadRegistry(dir string) (Registry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(dir) != "" {
		overrides, err := LoadFromDir(dir)
		if err != nil {
			return nil, err
		}
		prompts = overlay(prompts, overrides)
	}

	reg, err := NewRegistry(prompts)
	if err != nil {
		return nil, err
	}
	if err := Require(reg, BuiltinSlugs...); err != nil {
		return nil, err
	}
	return reg, nil
}

func overlay(base, overrides []*Prompt) []*Prompt {
	index := make(map[string]int, len(base))
	for i, p := range base {
		index[p.Config.Slug] = i
	}
	for _, p := range overrides {
		if i, ok := index[p.Config.Slug]; ok {
			base[i] = p
			continue
		}
		index[p.Config.Slug] = len(base)
		base = append(base, p)
	}
	return base
}
