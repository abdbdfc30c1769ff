package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// InsertExpense persists a committed expense and returns it with ID and
// CreatedAt filled in.
func (s *Store) InsertExpense(ctx context.Context, expense core.Expense) (core.Expense, error) {
	if s == nil || s.DB == nil {
		return core.Expense{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(expense.UserID) == "" {
		return core.Expense{}, errors.New("user id is required")
	}
	if strings.TrimSpace(expense.ID) == "" {
		expense.ID = uuid.NewString()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	if expense.LineItems == nil {
		expense.LineItems = []core.LineItem{}
	}

	items, err := json.Marshal(expense.LineItems)
	if err != nil {
		return core.Expense{}, fmt.Errorf("encode line items: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, merchant, expense_date, total, currency, category, line_items, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		expense.ID,
		expense.UserID,
		expense.Merchant,
		expense.Date,
		expense.Total.String(),
		nullString(expense.Currency),
		expense.Category,
		string(items),
		expense.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("store expense: %w", err)
	}
	return expense, nil
}

// ListExpenses returns a user's expenses, newest expense date first.
func (s *Store) ListExpenses(ctx context.Context, userID string, limit int) ([]core.Expense, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, merchant, expense_date, total, currency, category, line_items, created_at
		FROM expenses
		WHERE user_id = ?
		ORDER BY expense_date DESC, created_at DESC
		LIMIT ?
	`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			expense   core.Expense
			total     string
			currency  sql.NullString
			items     sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&expense.ID, &expense.Merchant, &expense.Date, &total, &currency,
			&expense.Category, &items, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expenses: %w", err)
		}
		expense.UserID = userID
		expense.Currency = currency.String
		expense.CreatedAt = time.UnixMilli(createdAt).UTC()
		if expense.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse expense total %q: %w", total, err)
		}
		expense.LineItems = []core.LineItem{}
		if items.Valid && items.String != "" {
			if err := json.Unmarshal([]byte(items.String), &expense.LineItems); err != nil {
				return nil, fmt.Errorf("decode line items: %w", err)
			}
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// MonthSpend sums a user's expenses in category dated anywhere in asOf's
// calendar month, including dates after asOf.
func (s *Store) MonthSpend(ctx context.Context, userID, category string, asOf time.Time) (decimal.Decimal, error) {
	if s == nil || s.DB == nil {
		return decimal.Zero, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	next := start.AddDate(0, 1, 0)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT total
		FROM expenses
		WHERE user_id = ? AND category = ? AND expense_date >= ? AND expense_date < ?
	`, strings.TrimSpace(userID), strings.TrimSpace(category), start.Format(core.DateLayout), next.Format(core.DateLayout))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	// totals are stored as decimal text; summing in SQL would go through REAL
	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("scan expense total: %w", err)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse expense total %q: %w", raw, err)
		}
		sum = sum.Add(value)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return sum, nil
}
