package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

func TestOCRErrorIsDataError(t *testing.T) {
	err := fmt.Errorf("extract: %w", &StageError{
		Stage: core.StageOCR,
		Err:   &OCRError{DataError: DataError{Provider: "ocr", Reason: "no text found"}, ExitCode: 3},
	})

	var dataErr *DataError
	require.True(t, errors.As(err, &dataErr))
	require.Equal(t, "no text found", dataErr.Reason)

	var ocrErr *OCRError
	require.True(t, errors.As(err, &ocrErr))
	require.Equal(t, 3, ocrErr.ExitCode)
	require.Contains(t, err.Error(), "ocr stage: ocr failed (exit code 3)")

	require.Equal(t, core.StageOCR, StageOf(err))
	require.Empty(t, StageOf(&DataError{Reason: "x"}))
}

func TestTransportErrorUnwraps(t *testing.T) {
	err := &TransportError{Provider: "openai", Err: context.DeadlineExceeded}
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, "openai transport failed: context deadline exceeded", err.Error())
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind(" OpenAI ")
	require.NoError(t, err)
	require.Equal(t, KindOpenAI, kind)

	_, err = ParseKind("gemini")
	require.ErrorContains(t, err, "gemini")
}
