package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	fulerrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/core/engine"
)

// exitCodeFor picks the foundry exit code for a failed command.
func exitCodeFor(err error) foundry.ExitCode {
	var (
		extractErr *engine.ExtractionError
		pathErr    *fs.PathError
	)
	switch {
	case err == nil:
		return foundry.ExitFailure
	case errors.As(err, &extractErr):
		return foundry.ExitExternalServiceUnavailable
	case errors.Is(err, fs.ErrNotExist), errors.As(err, &pathErr):
		return foundry.ExitFileNotFound
	default:
		return foundry.ExitFailure
	}
}

// Exit terminates a failed command with the exit code that matches err.
func Exit(msg string, err error) {
	ExitWithCodeStderr(exitCodeFor(err), msg, err)
}

// ExitWithCode logs msg with exit code metadata and exits. A nil logger
// falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		logger.Error(msg, zap.Int("exit_code", int(exitCode)), zap.Error(err))
		os.Exit(int(exitCode))
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	var envelope *fulerrors.ErrorEnvelope
	if errors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID))
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if original, ok := envelope.Original.(error); ok {
			err = original
		}
	}
	logger.Error(msg, append(fields, zap.Error(err))...)

	os.Exit(info.Code)
}

// ExitWithCodeStderr writes msg and the exit code description to stderr and
// exits. Used before the logger exists and by main.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	switch {
	case err == nil:
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	default:
		var envelope *fulerrors.ErrorEnvelope
		if errors.As(err, &envelope) {
			fmt.Fprintf(os.Stderr, "FATAL: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
		}
	}

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		os.Exit(int(exitCode))
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}
