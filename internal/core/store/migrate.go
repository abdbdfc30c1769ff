package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS quota_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		identifier TEXT NOT NULL,
		occurred_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_quota_records_lookup ON quota_records(action, identifier, occurred_at);`,
	`CREATE TABLE IF NOT EXISTS extraction_attempts (
		id TEXT PRIMARY KEY,
		identifier TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT,
		kind TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		error_detail TEXT,
		occurred_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_attempts_identifier ON extraction_attempts(identifier, occurred_at);`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		preferred_provider TEXT,
		default_currency TEXT,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL COLLATE NOCASE,
		created_at INTEGER NOT NULL,
		UNIQUE(user_id, name)
	);`,
	`CREATE TABLE IF NOT EXISTS budgets (
		user_id TEXT NOT NULL,
		category TEXT NOT NULL COLLATE NOCASE,
		limit_amount TEXT NOT NULL,
		currency TEXT,
		alert_threshold_percent INTEGER NOT NULL DEFAULT 80,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY(user_id, category)
	);`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		merchant TEXT NOT NULL,
		expense_date TEXT NOT NULL,
		total TEXT NOT NULL,
		currency TEXT,
		category TEXT NOT NULL COLLATE NOCASE,
		line_items TEXT,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_user_category_date ON expenses(user_id, category, expense_date);`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		category TEXT,
		percent_used TEXT,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	// stage attribution was added after the first release of extraction_attempts
	if err := s.ensureColumn(ctx, "extraction_attempts", "stage", "TEXT"); err != nil {
		return err
	}

	return nil
}

func (s *Store) ensureColumn(ctx context.Context, table, column, columnDef string) error {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s schema: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("inspect %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}

	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnDef)); err != nil {
		return fmt.Errorf("add %s.%s column: %w", table, column, err)
	}

	return nil
}
