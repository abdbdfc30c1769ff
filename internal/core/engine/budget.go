package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/metrics"
)

// BudgetStore is the persistence the budget checker needs.
type BudgetStore interface {
	GetBudget(ctx context.Context, userID, category string) (*core.BudgetSnapshot, error)
	MonthSpend(ctx context.Context, userID, category string, asOf time.Time) (decimal.Decimal, error)
	CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error)
}

// NotificationPublisher fans a created notification out to other consumers.
type NotificationPublisher interface {
	Publish(ctx context.Context, n core.Notification) error
}

// BudgetChecker raises a notification whenever a category's current-month
// spend sits at or above its alert threshold. Every crossing check that
// passes produces a new notification; there is no suppression of repeats.
type BudgetChecker struct {
	Store     BudgetStore
	Publisher NotificationPublisher

	DefaultThresholdPercent int

	Logger *logging.Logger
	Clock  func() time.Time
}

var hundred = decimal.NewFromInt(100)

// CheckExpense evaluates the budget for category. It returns the created
// notification, or nil when no budget exists or spend is under threshold.
func (b *BudgetChecker) CheckExpense(ctx context.Context, userID, category string) (*core.Notification, error) {
	if b == nil || b.Store == nil {
		return nil, nil
	}
	category = strings.TrimSpace(category)
	if strings.TrimSpace(userID) == "" || category == "" {
		return nil, nil
	}

	budget, err := b.Store.GetBudget(ctx, userID, category)
	if err != nil {
		return nil, fmt.Errorf("load budget: %w", err)
	}
	if budget == nil || !budget.Limit.IsPositive() {
		return nil, nil
	}

	now := b.now()
	spent, err := b.Store.MonthSpend(ctx, userID, category, now)
	if err != nil {
		return nil, fmt.Errorf("month spend: %w", err)
	}

	pct := b.threshold(budget.AlertThresholdPercent)
	threshold := budget.Limit.Mul(decimal.NewFromInt(int64(pct))).Div(hundred)
	if spent.LessThan(threshold) {
		return nil, nil
	}

	percentUsed := spent.Mul(hundred).Div(budget.Limit).Round(1)
	n := core.Notification{
		UserID:      userID,
		Kind:        core.NotificationKindBudgetAlert,
		Title:       fmt.Sprintf("%s budget alert", budget.Category),
		Message:     fmt.Sprintf("You've used %s%% of your %s budget (%s of %s).", percentUsed.String(), budget.Category, spent.StringFixed(2), budget.Limit.StringFixed(2)),
		Category:    budget.Category,
		PercentUsed: percentUsed,
		CreatedAt:   now,
	}
	created, err := b.Store.CreateNotification(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	metrics.RecordBudgetAlert(budget.Category)

	if b.Logger != nil {
		b.Logger.Info("Budget threshold reached",
			zap.String("user_id", userID),
			zap.String("category", budget.Category),
			zap.String("percent_used", percentUsed.String()),
			zap.Int("threshold_percent", pct))
	}

	if b.Publisher != nil {
		if err := b.Publisher.Publish(ctx, created); err != nil && b.Logger != nil {
			b.Logger.Warn("Failed to publish notification", zap.String("id", created.ID), zap.Error(err))
		}
	}
	return &created, nil
}

func (b *BudgetChecker) threshold(pct int) int {
	if pct >= 1 && pct <= 100 {
		return pct
	}
	if b.DefaultThresholdPercent >= 1 && b.DefaultThresholdPercent <= 100 {
		return b.DefaultThresholdPercent
	}
	return core.DefaultAlertThresholdPercent
}

func (b *BudgetChecker) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now()
}
