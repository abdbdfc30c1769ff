package output

import (
	"encoding/json"
)

// JSONFormatter renders report payloads as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format renders the report payload. A report without a payload renders
// its rows as objects keyed by header.
func (f *JSONFormatter) Format(report Report) (string, error) {
	payload := report.Payload
	if payload == nil {
		payload = rowsAsObjects(report)
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(payload, "", "  ")
	} else {
		data, err = json.Marshal(payload)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func rowsAsObjects(report Report) []map[string]string {
	out := make([]map[string]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		obj := make(map[string]string, len(report.Header))
		for i, key := range report.Header {
			if i < len(row) {
				obj[key] = row[i]
			}
		}
		out = append(out, obj)
	}
	return out
}
