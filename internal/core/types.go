package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the civil date format used for expense dates.
const DateLayout = "2006-01-02"

// LineItem is one purchased item on a receipt.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// ExpenseDraft is the structured result of a receipt or voice extraction.
// It is returned to the caller for confirmation and never persisted directly.
type ExpenseDraft struct {
	Merchant  string          `json:"merchant"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currencyCode,omitempty"`
	Category  string          `json:"category"`
	LineItems []LineItem      `json:"lineItems"`
}

// QuotaRecord marks one successful use of a quota-controlled action.
type QuotaRecord struct {
	Action     string
	Identifier string
	OccurredAt time.Time
}

// QuotaUsage summarises the records inside the current window.
type QuotaUsage struct {
	Limit   int        `json:"limit"`
	Count   int        `json:"used"`
	Oldest  *time.Time `json:"oldest,omitempty"`
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

// Remaining returns how many uses are left in the window, never negative.
func (u QuotaUsage) Remaining() int {
	if u.Count >= u.Limit {
		return 0
	}
	return u.Limit - u.Count
}

// Extraction stages recorded for two-stage providers.
const (
	StageOCR       = "ocr"
	StageStructure = "structure"
)

// ExtractionAttempt is the audit record written for every extraction attempt.
type ExtractionAttempt struct {
	ID          string        `json:"id"`
	Identifier  string        `json:"identifier"`
	Provider    string        `json:"provider"`
	Model       string        `json:"model,omitempty"`
	Kind        string        `json:"kind"`
	Stage       string        `json:"stage,omitempty"`
	Duration    time.Duration `json:"duration"`
	Succeeded   bool          `json:"succeeded"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// Attempt kinds.
const (
	AttemptKindImage = "image"
	AttemptKindAudio = "audio"
)

// DefaultAlertThresholdPercent applies when a budget has no usable threshold.
const DefaultAlertThresholdPercent = 80

// BudgetSnapshot is a category spending limit.
type BudgetSnapshot struct {
	UserID                string          `json:"user_id"`
	Category              string          `json:"category"`
	Limit                 decimal.Decimal `json:"limit"`
	Currency              string          `json:"currency,omitempty"`
	AlertThresholdPercent int             `json:"alert_threshold_percent"`
}

// NotificationKindBudgetAlert marks threshold notifications.
const NotificationKindBudgetAlert = "budget_alert"

// Notification is an in-app message for a user.
type Notification struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Kind        string          `json:"kind"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	Category    string          `json:"category,omitempty"`
	PercentUsed decimal.Decimal `json:"percent_used"`
	CreatedAt   time.Time       `json:"created_at"`
	Read        bool            `json:"read"`
}

// Expense is a committed expense.
type Expense struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Merchant  string          `json:"merchant"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currencyCode"`
	Category  string          `json:"category"`
	LineItems []LineItem      `json:"lineItems"`
	CreatedAt time.Time       `json:"created_at"`
}

// UserSettings holds per-user preferences relevant to extraction.
type UserSettings struct {
	UserID            string `json:"user_id"`
	PreferredProvider string `json:"preferred_provider,omitempty"`
	DefaultCurrency   string `json:"default_currency,omitempty"`
}
