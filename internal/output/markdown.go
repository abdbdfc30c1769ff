package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders reports as a markdown table.
type MarkdownFormatter struct{}

// Format renders a report as Markdown.
func (f *MarkdownFormatter) Format(report Report) (string, error) {
	var sb strings.Builder
	if report.Title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(report.Title)))
	}
	if len(report.Rows) == 0 {
		empty := report.Empty
		if empty == "" {
			empty = "(none)"
		}
		sb.WriteString(empty + "\n")
		return sb.String(), nil
	}

	sb.WriteString(markdownRow(report.Header))
	separators := make([]string, len(report.Header))
	for i := range separators {
		separators[i] = "---"
	}
	sb.WriteString(markdownRow(separators))
	for _, row := range report.Rows {
		sb.WriteString(markdownRow(row))
	}

	if report.Footer != "" {
		sb.WriteString(fmt.Sprintf("\n**%s**\n", escapeMarkdownCell(report.Footer)))
	}
	return sb.String(), nil
}

func markdownRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = escapeMarkdownCell(c)
	}
	return "| " + strings.Join(escaped, " | ") + " |\n"
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}
