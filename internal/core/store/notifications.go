package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// CreateNotification stores a notification and returns it with ID and
// CreatedAt filled in.
func (s *Store) CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	if s == nil || s.DB == nil {
		return core.Notification{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(n.UserID) == "" {
		return core.Notification{}, errors.New("user id is required")
	}
	if strings.TrimSpace(n.ID) == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, message, category, percent_used, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Kind, n.Title, n.Message, nullString(n.Category), n.PercentUsed.String(),
		boolToInt(n.Read), n.CreatedAt.UTC().UnixMilli())
	if err != nil {
		return core.Notification{}, fmt.Errorf("store notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]core.Notification, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, kind, title, message, category, percent_used, is_read, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += `
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := s.DB.QueryContext(ctx, query, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	out := []core.Notification{}
	for rows.Next() {
		var (
			n         core.Notification
			category  sql.NullString
			percent   sql.NullString
			isRead    int
			createdAt int64
		)
		if err := rows.Scan(&n.ID, &n.Kind, &n.Title, &n.Message, &category, &percent, &isRead, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notifications: %w", err)
		}
		n.UserID = userID
		n.Category = category.String
		n.Read = isRead != 0
		n.CreatedAt = time.UnixMilli(createdAt).UTC()
		if percent.Valid && percent.String != "" {
			if n.PercentUsed, err = decimal.NewFromString(percent.String); err != nil {
				return nil, fmt.Errorf("parse percent used %q: %w", percent.String, err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead flags one notification as read. It reports whether a
// row owned by userID was updated.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?
	`, strings.TrimSpace(id), strings.TrimSpace(userID))
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected > 0, nil
}
