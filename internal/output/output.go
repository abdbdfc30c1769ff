// Package output renders CLI reports as tables, markdown or JSON.
package output

import (
	"fmt"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Report is a titled grid of rows plus the structured value it was built
// from. Table and markdown output use the grid; JSON output uses Payload.
type Report struct {
	Title   string
	Header  []string
	Rows    [][]string
	Footer  string
	Empty   string
	Payload any
}

// Formatter renders reports.
type Formatter interface {
	Format(report Report) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Render is shorthand for NewFormatter(format).Format(report).
func Render(format Format, report Report) (string, error) {
	return NewFormatter(format).Format(report)
}
