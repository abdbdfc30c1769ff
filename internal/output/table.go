package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders reports as an ASCII table.
type TableFormatter struct{}

// Format renders a report as a table.
func (f *TableFormatter) Format(report Report) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if report.Title != "" {
		t.SetTitle(report.Title)
	}

	t.AppendHeader(toRow(report.Header))
	if len(report.Rows) == 0 {
		empty := report.Empty
		if empty == "" {
			empty = "(none)"
		}
		return t.Render() + "\n" + empty + "\n", nil
	}

	for _, row := range report.Rows {
		t.AppendRow(toRow(row))
	}
	if report.Footer != "" {
		footer := make(table.Row, len(report.Header))
		for i := range footer {
			footer[i] = ""
		}
		if len(footer) > 0 {
			footer[len(footer)-1] = report.Footer
		}
		t.AppendFooter(footer)
	}

	return t.Render() + "\n", nil
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
