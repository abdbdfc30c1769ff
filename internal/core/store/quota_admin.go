package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// QuotaEntry summarises the stored records for one (action, identifier).
type QuotaEntry struct {
	Action     string
	Identifier string
	Count      int
	Oldest     time.Time
	Newest     time.Time
}

// QuotaQuery selects quota records for operator commands.
type QuotaQuery struct {
	All        bool
	Action     string
	Identifier string
}

func (q QuotaQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Identifier) != "" {
		return nil
	}
	return errors.New("must specify --all or --user")
}

func (q QuotaQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var (
		clauses []string
		args    []any
	)
	if action := strings.TrimSpace(q.Action); action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, action)
	}
	if !q.All {
		clauses = append(clauses, "identifier = ?")
		args = append(args, strings.TrimSpace(q.Identifier))
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

// ListQuotaUsage groups stored records by action and identifier.
func (s *Store) ListQuotaUsage(ctx context.Context, q QuotaQuery) ([]QuotaEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT action, identifier, COUNT(*), MIN(occurred_at), MAX(occurred_at)
		FROM quota_records
		%s
		GROUP BY action, identifier
		ORDER BY action, identifier
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list quota usage: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []QuotaEntry{}
	for rows.Next() {
		var (
			entry          QuotaEntry
			oldest, newest int64
		)
		if err := rows.Scan(&entry.Action, &entry.Identifier, &entry.Count, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("scan quota usage: %w", err)
		}
		entry.Oldest = time.UnixMilli(oldest).UTC()
		entry.Newest = time.UnixMilli(newest).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quota usage: %w", err)
	}

	return entries, nil
}

// CountQuotaRecords counts the records matched by q.
func (s *Store) CountQuotaRecords(ctx context.Context, q QuotaQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM quota_records
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count quota records: %w", err)
	}
	return count, nil
}

// ResetQuota deletes the records matched by q.
func (s *Store) ResetQuota(ctx context.Context, q QuotaQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM quota_records
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset quota: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset quota: %w", err)
	}
	return affected, nil
}
