package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// GetBudget returns the budget for a user and category, or nil when none exists.
func (s *Store) GetBudget(ctx context.Context, userID, category string) (*core.BudgetSnapshot, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	userID = strings.TrimSpace(userID)
	category = strings.TrimSpace(category)
	if userID == "" || category == "" {
		return nil, errors.New("user id and category are required")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT category, limit_amount, currency, alert_threshold_percent
		FROM budgets
		WHERE user_id = ? AND category = ?
	`, userID, category)

	budget, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch budget: %w", err)
	}
	budget.UserID = userID
	return budget, nil
}

// UpsertBudget creates or replaces a category budget.
func (s *Store) UpsertBudget(ctx context.Context, budget core.BudgetSnapshot) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	userID := strings.TrimSpace(budget.UserID)
	category := strings.TrimSpace(budget.Category)
	if userID == "" || category == "" {
		return errors.New("user id and category are required")
	}
	if budget.Limit.IsNegative() {
		return errors.New("budget limit must not be negative")
	}
	pct := budget.AlertThresholdPercent
	if pct == 0 {
		pct = core.DefaultAlertThresholdPercent
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category, limit_amount, currency, alert_threshold_percent, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, category) DO UPDATE SET
			limit_amount = excluded.limit_amount,
			currency = excluded.currency,
			alert_threshold_percent = excluded.alert_threshold_percent,
			updated_at = excluded.updated_at
	`, userID, category, budget.Limit.String(), nullString(budget.Currency), pct, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store budget: %w", err)
	}
	return nil
}

// ListBudgets returns every budget for a user ordered by category.
func (s *Store) ListBudgets(ctx context.Context, userID string) ([]core.BudgetSnapshot, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	userID = strings.TrimSpace(userID)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT category, limit_amount, currency, alert_threshold_percent
		FROM budgets
		WHERE user_id = ?
		ORDER BY category
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	budgets := []core.BudgetSnapshot{}
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budgets: %w", err)
		}
		budget.UserID = userID
		budgets = append(budgets, *budget)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (*core.BudgetSnapshot, error) {
	var (
		category string
		limitRaw string
		currency sql.NullString
		pct      int
	)
	if err := row.Scan(&category, &limitRaw, &currency, &pct); err != nil {
		return nil, err
	}
	limit, err := decimal.NewFromString(limitRaw)
	if err != nil {
		return nil, fmt.Errorf("parse budget limit %q: %w", limitRaw, err)
	}
	return &core.BudgetSnapshot{
		Category:              category,
		Limit:                 limit,
		Currency:              currency.String,
		AlertThresholdPercent: pct,
	}, nil
}
