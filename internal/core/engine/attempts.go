package engine

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/ailink"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/metrics"
)

// AttemptStore persists extraction attempts.
type AttemptStore interface {
	InsertExtractionAttempt(ctx context.Context, attempt core.ExtractionAttempt) error
}

// AttemptLogger writes one audit record per extraction, success or failure.
// Store errors are logged and swallowed so auditing never fails a request.
type AttemptLogger struct {
	Store  AttemptStore
	Debug  ailink.DebugConfig
	Logger *logging.Logger
	Clock  func() time.Time
}

// Record completes attempt from the outcome and persists it.
func (l *AttemptLogger) Record(ctx context.Context, attempt core.ExtractionAttempt, err error) core.ExtractionAttempt {
	if l == nil {
		return attempt
	}
	if attempt.OccurredAt.IsZero() {
		attempt.OccurredAt = l.now()
	}
	attempt.Succeeded = err == nil
	if err != nil {
		failure := ailink.Classify(err, l.Debug)
		attempt.ErrorDetail = failure.String()
		attempt.Stage = driver.StageOf(err)
	}

	metrics.RecordExtraction(attempt.Provider, attempt.Kind, attempt.Succeeded, attempt.Duration)

	if l.Logger != nil {
		fields := []zap.Field{
			zap.String("identifier", attempt.Identifier),
			zap.String("provider", attempt.Provider),
			zap.String("model", attempt.Model),
			zap.String("kind", attempt.Kind),
			zap.Duration("duration", attempt.Duration),
			zap.Bool("succeeded", attempt.Succeeded),
		}
		if err != nil {
			fields = append(fields, zap.String("stage", attempt.Stage), zap.String("error_detail", attempt.ErrorDetail))
			l.Logger.Warn("Extraction failed", fields...)
		} else {
			l.Logger.Info("Extraction completed", fields...)
		}
	}

	if l.Store == nil {
		return attempt
	}
	if storeErr := l.Store.InsertExtractionAttempt(ctx, attempt); storeErr != nil && l.Logger != nil {
		l.Logger.Error("Failed to record extraction attempt", zap.Error(storeErr))
	}
	return attempt
}

func (l *AttemptLogger) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}
