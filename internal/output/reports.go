package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/core/store"
)

const timeLayout = "2006-01-02 15:04"

// DraftReport renders extracted drafts with their line items flattened.
func DraftReport(drafts []core.ExpenseDraft) Report {
	report := Report{
		Title:   "Extracted expenses",
		Header:  []string{"Merchant", "Date", "Category", "Total", "Items"},
		Empty:   "(no expenses extracted)",
		Payload: drafts,
	}
	for _, d := range drafts {
		report.Rows = append(report.Rows, []string{
			d.Merchant,
			d.Date,
			d.Category,
			money(d.Total.StringFixed(2), d.Currency),
			lineItemSummary(d.LineItems),
		})
	}
	return report
}

// QuotaReport renders stored quota usage.
func QuotaReport(entries []store.QuotaEntry, limit int, window time.Duration) Report {
	report := Report{
		Title:   "Quota usage",
		Header:  []string{"Action", "User", "Used", "Oldest", "Resets"},
		Empty:   "(no stored quota usage)",
		Payload: entries,
	}
	for _, e := range entries {
		report.Rows = append(report.Rows, []string{
			e.Action,
			e.Identifier,
			fmt.Sprintf("%d/%d", e.Count, limit),
			e.Oldest.UTC().Format(timeLayout),
			e.Oldest.Add(window).UTC().Format(timeLayout),
		})
	}
	return report
}

// AttemptReport renders the extraction audit log.
func AttemptReport(attempts []core.ExtractionAttempt) Report {
	report := Report{
		Title:   "Extraction attempts",
		Header:  []string{"When", "User", "Kind", "Provider", "Model", "Duration", "Result"},
		Empty:   "(no extraction attempts)",
		Payload: attempts,
	}
	failed := 0
	for _, a := range attempts {
		result := "ok"
		if !a.Succeeded {
			failed++
			result = "failed"
			if a.Stage != "" {
				result += " (" + a.Stage + ")"
			}
		}
		report.Rows = append(report.Rows, []string{
			a.OccurredAt.UTC().Format(timeLayout),
			a.Identifier,
			a.Kind,
			a.Provider,
			a.Model,
			a.Duration.Round(time.Millisecond).String(),
			result,
		})
	}
	if len(attempts) > 0 {
		report.Footer = fmt.Sprintf("%d/%d failed", failed, len(attempts))
	}
	return report
}

// BudgetReport renders a user's budgets.
func BudgetReport(budgets []core.BudgetSnapshot) Report {
	report := Report{
		Title:   "Budgets",
		Header:  []string{"Category", "Limit", "Alert at"},
		Empty:   "(no budgets)",
		Payload: budgets,
	}
	for _, b := range budgets {
		report.Rows = append(report.Rows, []string{
			b.Category,
			money(b.Limit.StringFixed(2), b.Currency),
			strconv.Itoa(b.AlertThresholdPercent) + "%",
		})
	}
	return report
}

// ExpenseReport renders committed expenses.
func ExpenseReport(expenses []core.Expense) Report {
	report := Report{
		Title:   "Expenses",
		Header:  []string{"Date", "Merchant", "Category", "Total"},
		Empty:   "(no expenses)",
		Payload: expenses,
	}
	for _, e := range expenses {
		report.Rows = append(report.Rows, []string{
			e.Date,
			e.Merchant,
			e.Category,
			money(e.Total.StringFixed(2), e.Currency),
		})
	}
	return report
}

// NotificationReport renders in-app notifications.
func NotificationReport(notifications []core.Notification) Report {
	report := Report{
		Title:   "Notifications",
		Header:  []string{"When", "Title", "Message", "Read"},
		Empty:   "(no notifications)",
		Payload: notifications,
	}
	for _, n := range notifications {
		read := "no"
		if n.Read {
			read = "yes"
		}
		report.Rows = append(report.Rows, []string{
			n.CreatedAt.UTC().Format(timeLayout),
			n.Title,
			n.Message,
			read,
		})
	}
	return report
}

// SettingsReport renders user settings and the effective category list.
func SettingsReport(settings core.UserSettings, categories []string) Report {
	provider := settings.PreferredProvider
	if provider == "" {
		provider = "(default)"
	}
	currency := settings.DefaultCurrency
	if currency == "" {
		currency = "(default)"
	}
	return Report{
		Title:  "Settings for " + settings.UserID,
		Header: []string{"Setting", "Value"},
		Rows: [][]string{
			{"preferred_provider", provider},
			{"default_currency", currency},
			{"categories", strings.Join(categories, ", ")},
		},
		Payload: map[string]any{
			"settings":   settings,
			"categories": categories,
		},
	}
}

func money(amount, currency string) string {
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}

func lineItemSummary(items []core.LineItem) string {
	if len(items) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s x%s @ %s", item.Description, item.Quantity.String(), item.Price.StringFixed(2)))
	}
	return strings.Join(parts, "; ")
}
