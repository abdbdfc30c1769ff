package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// ExpenseStore persists confirmed expenses.
type ExpenseStore interface {
	InsertExpense(ctx context.Context, expense core.Expense) (core.Expense, error)
}

// ExpenseService commits confirmed drafts and runs the budget check.
type ExpenseService struct {
	Store           ExpenseStore
	Budgets         *BudgetChecker
	DefaultCurrency string
	Logger          *logging.Logger
}

// Commit stores draft as an expense. A failed budget check is logged and
// does not undo the insert.
func (s *ExpenseService) Commit(ctx context.Context, userID string, draft core.ExpenseDraft) (core.Expense, *core.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Expense{}, nil, &ValidationError{Field: "user", Reason: "user id is required"}
	}
	if strings.TrimSpace(draft.Merchant) == "" {
		return core.Expense{}, nil, &ValidationError{Field: "merchant", Reason: "merchant is required"}
	}
	if strings.TrimSpace(draft.Category) == "" {
		return core.Expense{}, nil, &ValidationError{Field: "category", Reason: "category is required"}
	}
	if _, err := time.Parse(core.DateLayout, draft.Date); err != nil {
		return core.Expense{}, nil, &ValidationError{Field: "date", Reason: "date must be YYYY-MM-DD", Err: err}
	}
	if draft.Total.IsNegative() {
		return core.Expense{}, nil, &ValidationError{Field: "total", Reason: "total must not be negative"}
	}

	currency := strings.ToUpper(strings.TrimSpace(draft.Currency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(s.DefaultCurrency))
	}
	items := draft.LineItems
	if items == nil {
		items = []core.LineItem{}
	}

	expense, err := s.Store.InsertExpense(ctx, core.Expense{
		UserID:    userID,
		Merchant:  strings.TrimSpace(draft.Merchant),
		Date:      draft.Date,
		Total:     draft.Total,
		Currency:  currency,
		Category:  strings.TrimSpace(draft.Category),
		LineItems: items,
	})
	if err != nil {
		return core.Expense{}, nil, fmt.Errorf("insert expense: %w", err)
	}

	notification, err := s.Budgets.CheckExpense(ctx, userID, expense.Category)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("Budget check failed", zap.String("user_id", userID), zap.String("category", expense.Category), zap.Error(err))
		}
		return expense, nil, nil
	}
	return expense, notification, nil
}
