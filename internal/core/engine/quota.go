package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// QuotaStore persists quota records.
type QuotaStore interface {
	QuotaWindow(ctx context.Context, action, identifier string, from, to time.Time) (int, *time.Time, error)
	AddQuotaRecord(ctx context.Context, record core.QuotaRecord) error
}

// QuotaManager enforces a sliding-window usage limit per (action, identifier).
//
// The check and the record are separate calls, so concurrent requests for the
// same identifier can both pass the check. The limit is soft by that margin.
type QuotaManager struct {
	Store  QuotaStore
	Limit  int
	Window time.Duration
	Clock  func() time.Time
}

// QuotaExceededError reports a refused request and when capacity returns.
type QuotaExceededError struct {
	Action  string
	Limit   int
	Used    int
	ResetAt time.Time
	Now     time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d of %d used, resets in %d hours",
		e.Action, e.Used, e.Limit, e.HoursUntilReset())
}

// HoursUntilReset rounds the remaining wait up to whole hours.
func (e *QuotaExceededError) HoursUntilReset() int {
	wait := e.ResetAt.Sub(e.Now)
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Hours()))
}

// IsAllowed reports whether one more use fits in the window.
func (q *QuotaManager) IsAllowed(ctx context.Context, action, identifier string) (bool, error) {
	usage, err := q.CurrentUsage(ctx, action, identifier)
	if err != nil {
		return false, err
	}
	return usage.Count < usage.Limit, nil
}

// RecordUsage appends a usage record stamped with the current time.
func (q *QuotaManager) RecordUsage(ctx context.Context, action, identifier string) error {
	if err := q.validate(action, identifier); err != nil {
		return err
	}
	return q.Store.AddQuotaRecord(ctx, core.QuotaRecord{
		Action:     action,
		Identifier: identifier,
		OccurredAt: q.now(),
	})
}

// CurrentUsage counts records in [now-window, now]. ResetAt is the moment the
// oldest of them leaves the window.
func (q *QuotaManager) CurrentUsage(ctx context.Context, action, identifier string) (core.QuotaUsage, error) {
	if err := q.validate(action, identifier); err != nil {
		return core.QuotaUsage{}, err
	}

	now := q.now()
	count, oldest, err := q.Store.QuotaWindow(ctx, action, identifier, now.Add(-q.Window), now)
	if err != nil {
		return core.QuotaUsage{}, fmt.Errorf("read quota usage: %w", err)
	}

	usage := core.QuotaUsage{Limit: q.Limit, Count: count, Oldest: oldest}
	if oldest != nil {
		reset := oldest.Add(q.Window)
		usage.ResetAt = &reset
	}
	return usage, nil
}

// Check returns a *QuotaExceededError when the identifier has no capacity left.
func (q *QuotaManager) Check(ctx context.Context, action, identifier string) error {
	usage, err := q.CurrentUsage(ctx, action, identifier)
	if err != nil {
		return err
	}
	if usage.Count < usage.Limit {
		return nil
	}

	now := q.now()
	resetAt := now.Add(q.Window)
	if usage.ResetAt != nil {
		resetAt = *usage.ResetAt
	}
	return &QuotaExceededError{
		Action:  action,
		Limit:   usage.Limit,
		Used:    usage.Count,
		ResetAt: resetAt,
		Now:     now,
	}
}

func (q *QuotaManager) validate(action, identifier string) error {
	if q == nil || q.Store == nil {
		return errors.New("quota manager is not configured")
	}
	if q.Limit <= 0 || q.Window <= 0 {
		return fmt.Errorf("invalid quota: limit %d per %s", q.Limit, q.Window)
	}
	if strings.TrimSpace(action) == "" || strings.TrimSpace(identifier) == "" {
		return errors.New("action and identifier are required")
	}
	return nil
}

func (q *QuotaManager) now() time.Time {
	if q != nil && q.Clock != nil {
		return q.Clock()
	}
	return time.Now().UTC()
}
