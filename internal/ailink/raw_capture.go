package ailink

import "strings"

const defaultRawCaptureBytes = 2048

func truncateBytes(input []byte, max int) []byte {
	if max <= 0 {
		return nil
	}
	if len(input) <= max {
		return input
	}
	out := make([]byte, 0, max)
	out = append(out, input[:max]...)
	return out
}

func isRawCaptureEnabled(debug DebugConfig) bool {
	return debug.CaptureRawEnabled
}

// rawLimit caps captured model output; a zero setting uses the default.
func rawLimit(debug DebugConfig) int {
	if debug.CaptureRawMaxBytes <= 0 {
		return defaultRawCaptureBytes
	}
	return debug.CaptureRawMaxBytes
}

func safeOneLine(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
