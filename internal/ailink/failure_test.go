package ailink

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/core"
)

func TestClassifyProviderStatusCodes(t *testing.T) {
	cases := []struct {
		statusCode int
		wantCode   string
	}{
		{401, "EXTRACTION_PROVIDER_AUTH"},
		{403, "EXTRACTION_PROVIDER_AUTH"},
		{429, "EXTRACTION_PROVIDER_RATE_LIMIT"},
		{400, "EXTRACTION_PROVIDER_BAD_REQUEST"},
		{503, "EXTRACTION_PROVIDER_UNAVAILABLE"},
	}
	for _, tc := range cases {
		err := &ExhaustedError{Attempts: 1, Err: &driver.ProviderError{Provider: "openai", StatusCode: tc.statusCode, Message: "boom"}}
		failure := Classify(err, DebugConfig{})
		require.Equal(t, tc.wantCode, failure.Code, "status %d", tc.statusCode)
		require.Equal(t, "boom", failure.Details)
	}
}

func TestClassifyDataErrorsAndStages(t *testing.T) {
	raw := []byte(`{"merchant":"Cafe"}`)
	err := &driver.StageError{Stage: core.StageStructure, Err: &driver.DataError{Provider: "ocr", Reason: "missing category", Raw: raw}}

	failure := Classify(err, DebugConfig{})
	require.Equal(t, "EXTRACTION_INVALID_OUTPUT", failure.Code)
	require.Equal(t, core.StageStructure, failure.Stage)
	require.Equal(t, "missing category", failure.Details)
	require.Equal(t, "[structure] EXTRACTION_INVALID_OUTPUT: provider returned an unusable draft (missing category)", failure.String())

	failure = Classify(err, DebugConfig{CaptureRawEnabled: true, CaptureRawMaxBytes: 5})
	require.Equal(t, `missing category; raw={"mer`, failure.Details)

	ocr := &driver.StageError{Stage: core.StageOCR, Err: &driver.OCRError{DataError: driver.DataError{Reason: "no text recognized"}}}
	failure = Classify(ocr, DebugConfig{})
	require.Equal(t, "EXTRACTION_OCR_FAILED", failure.Code)
	require.Equal(t, core.StageOCR, failure.Stage)
}

func TestClassifyMisc(t *testing.T) {
	require.Nil(t, Classify(nil, DebugConfig{}))
	require.Equal(t, "EXTRACTION_NO_CREDENTIALS", Classify(fmt.Errorf("resolve: %w", ErrNoCredentials), DebugConfig{}).Code)
	require.Equal(t, "EXTRACTION_PROVIDER_TIMEOUT", Classify(&driver.TransportError{Err: context.DeadlineExceeded}, DebugConfig{}).Code)
	require.Equal(t, "EXTRACTION_TRANSPORT", Classify(&driver.TransportError{Err: errors.New("reset")}, DebugConfig{}).Code)
	require.Equal(t, "EXTRACTION_FAILED", Classify(errors.New("odd"), DebugConfig{}).Code)
}
