package driver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraceElidesEncodedPayloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.ndjson")
	cleanup, err := EnableTracing(path)
	require.NoError(t, err)

	image := strings.Repeat("A", 2048)
	Trace(TraceEntry{
		Driver:      "openai",
		Credential:  MaskKey("sk-test-1234"),
		Endpoint:    "https://example.test/chat/completions",
		Method:      "POST",
		RequestBody: json.RawMessage(`{"model":"m","image":"data:image/png;base64,` + image + `"}`),
		StatusCode:  200,
	})
	cleanup()
	require.False(t, IsTracingEnabled())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry TraceEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	require.Equal(t, "****1234", entry.Credential)
	require.NotContains(t, string(entry.RequestBody), image)
	require.Contains(t, string(entry.RequestBody), "<omitted")
	require.Contains(t, string(entry.RequestBody), `"model":"m"`)
}

func TestTraceIsNoopWhenDisabled(t *testing.T) {
	DisableTracing()
	require.False(t, IsTracingEnabled())
	Trace(TraceEntry{Driver: "xai"})

	require.Equal(t, "****", MaskKey("abc"))
	short := json.RawMessage(`{"a":"b"}`)
	require.Equal(t, short, elidePayloads(short))
}

func TestEnableTracingReplacesPreviousSink(t *testing.T) {
	dir := t.TempDir()
	first, err := EnableTracing(filepath.Join(dir, "a.ndjson"))
	require.NoError(t, err)
	second, err := EnableTracing(filepath.Join(dir, "b.ndjson"))
	require.NoError(t, err)

	first()
	require.True(t, IsTracingEnabled())
	Trace(TraceEntry{Driver: "anthropic"})
	second()
	require.False(t, IsTracingEnabled())

	data, err := os.ReadFile(filepath.Join(dir, "b.ndjson"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"driver":"anthropic"`)
}
