package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
)

// Failure classifies an extraction error for logs and API responses.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// String renders the failure as a single log-friendly line.
func (f *Failure) String() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	if f.Stage != "" {
		b.WriteString("[" + f.Stage + "] ")
	}
	b.WriteString(f.Code + ": " + f.Message)
	if f.Details != "" {
		b.WriteString(" (" + safeOneLine(f.Details) + ")")
	}
	return b.String()
}

// Classify maps a provider or fallback error onto a stable failure code.
// Raw model output is only included when raw capture is enabled in debug.
func Classify(err error, debug DebugConfig) *Failure {
	if err == nil {
		return nil
	}
	failure := classify(err, debug)
	failure.Stage = driver.StageOf(err)
	return failure
}

func classify(err error, debug DebugConfig) *Failure {
	if errors.Is(err, ErrNoCredentials) {
		return &Failure{Code: "EXTRACTION_NO_CREDENTIALS", Message: "provider has no usable credentials"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Code: "EXTRACTION_PROVIDER_TIMEOUT", Message: "provider request timed out"}
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		details := strings.TrimSpace(perr.Message)
		switch status := perr.StatusCode; {
		case status == 401 || status == 403:
			return &Failure{Code: "EXTRACTION_PROVIDER_AUTH", Message: "provider authentication failed", Details: details}
		case status == 429:
			return &Failure{Code: "EXTRACTION_PROVIDER_RATE_LIMIT", Message: "provider rate limited", Details: details}
		case status >= 500 && status <= 599:
			return &Failure{Code: "EXTRACTION_PROVIDER_UNAVAILABLE", Message: "provider unavailable", Details: details}
		case status >= 400 && status <= 499:
			return &Failure{Code: "EXTRACTION_PROVIDER_BAD_REQUEST", Message: "provider rejected request", Details: details}
		default:
			return &Failure{Code: "EXTRACTION_PROVIDER_ERROR", Message: "provider request failed", Details: details}
		}
	}

	var ocrErr *driver.OCRError
	if errors.As(err, &ocrErr) && ocrErr != nil {
		return &Failure{Code: "EXTRACTION_OCR_FAILED", Message: "text recognition failed", Details: withRaw(ocrErr.Reason, ocrErr.Raw, debug)}
	}

	var dataErr *driver.DataError
	if errors.As(err, &dataErr) && dataErr != nil {
		return &Failure{Code: "EXTRACTION_INVALID_OUTPUT", Message: "provider returned an unusable draft", Details: withRaw(dataErr.Reason, dataErr.Raw, debug)}
	}

	var terr *driver.TransportError
	if errors.As(err, &terr) && terr != nil {
		return &Failure{Code: "EXTRACTION_TRANSPORT", Message: "provider unreachable", Details: terr.Err.Error()}
	}

	return &Failure{Code: "EXTRACTION_FAILED", Message: "extraction failed", Details: err.Error()}
}

func withRaw(reason string, raw []byte, debug DebugConfig) string {
	if !isRawCaptureEnabled(debug) || len(raw) == 0 {
		return reason
	}
	captured := truncateBytes(raw, rawLimit(debug))
	if len(captured) == 0 {
		return reason
	}
	return fmt.Sprintf("%s; raw=%s", reason, captured)
}
