package driver

import (
	"errors"
	"fmt"
)

// ProviderError is returned when a provider responds with a non-2xx status.
//
// Drivers should populate RawResponse with the provider response body bytes.
// RawResponse must never include API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

// TransportError wraps a network-level failure (DNS, TLS, timeout, reset).
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	if e == nil || e.Err == nil {
		return "transport error"
	}
	return fmt.Sprintf("%s transport failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DataError reports a response that arrived but could not be turned into a
// valid draft: non-JSON text, missing required fields, wrong types.
type DataError struct {
	Provider string
	Reason   string
	Raw      []byte
}

func (e *DataError) Error() string {
	if e == nil {
		return "invalid extraction data"
	}
	if e.Provider == "" {
		return "invalid extraction data: " + e.Reason
	}
	return fmt.Sprintf("%s returned invalid extraction data: %s", e.Provider, e.Reason)
}

// OCRError is a DataError raised by the text recognition stage.
type OCRError struct {
	DataError
	ExitCode int
}

func (e *OCRError) Error() string {
	if e == nil {
		return "ocr failed"
	}
	if e.ExitCode != 0 {
		return fmt.Sprintf("ocr failed (exit code %d): %s", e.ExitCode, e.Reason)
	}
	return "ocr failed: " + e.Reason
}

func (e *OCRError) Unwrap() error {
	if e == nil {
		return nil
	}
	return &e.DataError
}

// StageError attributes a failure to one stage of a multi-stage extraction.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil || e.Err == nil {
		return "stage failed"
	}
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StageOf returns the stage recorded on err, or "" for single-stage failures.
func StageOf(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) && stageErr != nil {
		return stageErr.Stage
	}
	return ""
}
