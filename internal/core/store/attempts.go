package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// AttemptQuery filters the extraction attempt log.
type AttemptQuery struct {
	Identifier string
	Provider   string
	FailedOnly bool
	Limit      int
}

// InsertExtractionAttempt appends one attempt record. An empty ID is
// replaced with a random one.
func (s *Store) InsertExtractionAttempt(ctx context.Context, attempt core.ExtractionAttempt) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(attempt.ID) == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.OccurredAt.IsZero() {
		attempt.OccurredAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO extraction_attempts
			(id, identifier, provider, model, kind, stage, duration_ms, succeeded, error_detail, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		attempt.ID,
		attempt.Identifier,
		attempt.Provider,
		nullString(attempt.Model),
		attempt.Kind,
		nullString(attempt.Stage),
		attempt.Duration.Milliseconds(),
		boolToInt(attempt.Succeeded),
		nullString(attempt.ErrorDetail),
		attempt.OccurredAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store extraction attempt: %w", err)
	}
	return nil
}

// ListExtractionAttempts returns attempts newest first.
func (s *Store) ListExtractionAttempts(ctx context.Context, q AttemptQuery) ([]core.ExtractionAttempt, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		clauses []string
		args    []any
	)
	if id := strings.TrimSpace(q.Identifier); id != "" {
		clauses = append(clauses, "identifier = ?")
		args = append(args, id)
	}
	if provider := strings.TrimSpace(q.Provider); provider != "" {
		clauses = append(clauses, "provider = ?")
		args = append(args, provider)
	}
	if q.FailedOnly {
		clauses = append(clauses, "succeeded = 0")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, identifier, provider, model, kind, stage, duration_ms, succeeded, error_detail, occurred_at
		FROM extraction_attempts
		%s
		ORDER BY occurred_at DESC
		LIMIT ?
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list extraction attempts: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	attempts := []core.ExtractionAttempt{}
	for rows.Next() {
		var (
			attempt     core.ExtractionAttempt
			model       sql.NullString
			stage       sql.NullString
			errorDetail sql.NullString
			durationMS  int64
			succeeded   int
			occurredAt  int64
		)
		if err := rows.Scan(&attempt.ID, &attempt.Identifier, &attempt.Provider, &model, &attempt.Kind,
			&stage, &durationMS, &succeeded, &errorDetail, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan extraction attempts: %w", err)
		}
		attempt.Model = model.String
		attempt.Stage = stage.String
		attempt.ErrorDetail = errorDetail.String
		attempt.Duration = time.Duration(durationMS) * time.Millisecond
		attempt.Succeeded = succeeded != 0
		attempt.OccurredAt = time.UnixMilli(occurredAt).UTC()
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list extraction attempts: %w", err)
	}
	return attempts, nil
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
