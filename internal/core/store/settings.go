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

// GetUserSettings returns stored settings, or nil when the user has none.
func (s *Store) GetUserSettings(ctx context.Context, userID string) (*core.UserSettings, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	var provider, currency sql.NullString
	row := s.DB.QueryRowContext(ctx, `
		SELECT preferred_provider, default_currency
		FROM user_settings
		WHERE user_id = ?
	`, userID)
	if err := row.Scan(&provider, &currency); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user settings: %w", err)
	}

	return &core.UserSettings{
		UserID:            userID,
		PreferredProvider: provider.String,
		DefaultCurrency:   currency.String,
	}, nil
}

// UpsertUserSettings stores settings for a user.
func (s *Store) UpsertUserSettings(ctx context.Context, settings core.UserSettings) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	userID := strings.TrimSpace(settings.UserID)
	if userID == "" {
		return errors.New("user id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, preferred_provider, default_currency, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			preferred_provider = excluded.preferred_provider,
			default_currency = excluded.default_currency,
			updated_at = excluded.updated_at
	`, userID, nullString(settings.PreferredProvider), nullString(strings.ToUpper(settings.DefaultCurrency)), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store user settings: %w", err)
	}
	return nil
}

// ListCustomCategories returns the categories a user added, oldest first.
func (s *Store) ListCustomCategories(ctx context.Context, userID string) ([]string, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT name FROM categories WHERE user_id = ? ORDER BY created_at, id
	`, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan categories: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return names, nil
}

// AddCategory adds a custom category. Adding an existing name (ignoring case)
// is a no-op.
func (s *Store) AddCategory(ctx context.Context, userID, name string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	if userID == "" || name == "" {
		return errors.New("user id and category name are required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, name) DO NOTHING
	`, userID, name, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store category: %w", err)
	}
	return nil
}
