package ailink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateBytes(t *testing.T) {
	input := []byte(`{"a":"0123456789"}`)
	out := truncateBytes(input, 8)
	require.Len(t, out, 8)
	require.Equal(t, string(input[:8]), string(out))

	require.Equal(t, input, truncateBytes(input, 1024))
	require.Nil(t, truncateBytes(input, 0))
}

func TestRawLimitDefaults(t *testing.T) {
	require.Equal(t, defaultRawCaptureBytes, rawLimit(DebugConfig{}))
	require.Equal(t, 16, rawLimit(DebugConfig{CaptureRawMaxBytes: 16}))
}

func TestSafeOneLine(t *testing.T) {
	require.Equal(t, "a b c", safeOneLine("  a\n b\r\n\tc "))
}
