package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// Render fills the system and user templates. Templates use {{name}} for
// substitution and {{#if name}}...{{else}}...{{/if}} for blocks that depend
// on whether an optional variable is set. Unknown names are left verbatim.
func (p *Prompt) Render(vars map[string]string) (system string, user string, err error) {
	if p == nil {
		return "", "", errors.New("prompt is required")
	}
	for _, name := range p.Config.Input.RequiredVariables {
		if strings.TrimSpace(vars[name]) == "" {
			return "", "", fmt.Errorf("prompt %s: variable %q is required", p.Config.Slug, name)
		}
	}

	system = strings.TrimSpace(expand(p.Config.SystemTemplate, vars))
	if system == "" {
		return "", "", errors.New("system prompt is required")
	}
	return system, strings.TrimSpace(expand(p.Config.UserTemplate, vars)), nil
}

// Temperature returns provider_hints.temperature, if set.
func (p *Prompt) Temperature() *float64 {
	if p == nil {
		return nil
	}
	var t float64
	switch v := p.Config.ProviderHints["temperature"].(type) {
	case float64:
		t = v
	case int:
		t = float64(v)
	default:
		return nil
	}
	return &t
}

// MaxTokens returns provider_hints.max_tokens when positive.
func (p *Prompt) MaxTokens() *int {
	if p == nil {
		return nil
	}
	n, ok := p.Config.ProviderHints["max_tokens"].(int)
	if !ok || n <= 0 {
		return nil
	}
	return &n
}

type segment struct {
	text  string
	isTag bool
}

// split breaks a template into literal text and {{tag}} segments. An
// unterminated "{{" is kept as text.
func split(tmpl string) []segment {
	var out []segment
	for tmpl != "" {
		open := strings.Index(tmpl, "{{")
		if open < 0 {
			out = append(out, segment{text: tmpl})
			break
		}
		end := strings.Index(tmpl[open:], "}}")
		if end < 0 {
			out = append(out, segment{text: tmpl})
			break
		}
		if open > 0 {
			out = append(out, segment{text: tmpl[:open]})
		}
		out = append(out, segment{text: tmpl[open+2 : open+end], isTag: true})
		tmpl = tmpl[open+end+2:]
	}
	return out
}

type branch struct {
	parentOn bool
	cond     bool
}

func expand(tmpl string, vars map[string]string) string {
	var (
		b     strings.Builder
		stack []branch
		on    = true
	)
	for _, seg := range split(tmpl) {
		if !seg.isTag {
			if on {
				b.WriteString(seg.text)
			}
			continue
		}

		tag := strings.TrimSpace(seg.text)
		switch {
		case strings.HasPrefix(tag, "#if ") || tag == "#if":
			name := strings.TrimSpace(strings.TrimPrefix(tag, "#if"))
			br := branch{parentOn: on, cond: strings.TrimSpace(vars[name]) != ""}
			stack = append(stack, br)
			on = br.parentOn && br.cond
		case tag == "else" && len(stack) > 0:
			top := stack[len(stack)-1]
			on = top.parentOn && !top.cond
		case tag == "/if" && len(stack) > 0:
			on = stack[len(stack)-1].parentOn
			stack = stack[:len(stack)-1]
		case on:
			if v, ok := vars[tag]; ok {
				b.WriteString(v)
			} else {
				b.WriteString("{{" + seg.text + "}}")
			}
		}
	}
	return b.String()
}
