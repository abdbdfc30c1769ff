package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// QuotaWindow counts quota records for (action, identifier) with occurred_at
// inside [from, to] and returns the oldest one, if any.
func (s *Store) QuotaWindow(ctx context.Context, action, identifier string, from, to time.Time) (int, *time.Time, error) {
	if s == nil || s.DB == nil {
		return 0, nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	action = strings.TrimSpace(action)
	identifier = strings.TrimSpace(identifier)
	if action == "" || identifier == "" {
		return 0, nil, errors.New("action and identifier are required")
	}

	var (
		count  int
		oldest sql.NullInt64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(occurred_at)
		FROM quota_records
		WHERE action = ? AND identifier = ? AND occurred_at >= ? AND occurred_at <= ?
	`, action, identifier, from.UTC().UnixMilli(), to.UTC().UnixMilli())
	if err := row.Scan(&count, &oldest); err != nil {
		return 0, nil, fmt.Errorf("count quota records: %w", err)
	}

	if !oldest.Valid {
		return count, nil, nil
	}
	value := time.UnixMilli(oldest.Int64).UTC()
	return count, &value, nil
}

// AddQuotaRecord appends one usage record.
func (s *Store) AddQuotaRecord(ctx context.Context, record core.QuotaRecord) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	action := strings.TrimSpace(record.Action)
	identifier := strings.TrimSpace(record.Identifier)
	if action == "" || identifier == "" {
		return errors.New("action and identifier are required")
	}
	occurredAt := record.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO quota_records (action, identifier, occurred_at)
		VALUES (?, ?, ?)
	`, action, identifier, occurredAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store quota record: %w", err)
	}
	return nil
}

// PruneQuotaRecords deletes records older than cutoff. Records outside every
// window never affect a decision, so this is housekeeping only.
func (s *Store) PruneQuotaRecords(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM quota_records WHERE occurred_at < ?`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune quota records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune quota records: %w", err)
	}
	return affected, nil
}
