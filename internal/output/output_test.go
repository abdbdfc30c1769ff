package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/core/store"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleDraft() core.ExpenseDraft {
	return core.ExpenseDraft{
		Merchant: "Corner Cafe",
		Date:     "2025-03-10",
		Total:    decimal.RequireFromString("12.50"),
		Currency: "EUR",
		Category: "Food & Dining",
		LineItems: []core.LineItem{
			{Description: "Latte", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("6.25")},
		},
	}
}

func TestDraftReportTable(t *testing.T) {
	out, err := Render(FormatTable, DraftReport([]core.ExpenseDraft{sampleDraft()}))
	require.NoError(t, err)
	require.Contains(t, out, "Corner Cafe")
	require.Contains(t, out, "12.50 EUR")
	require.Contains(t, out, "Latte x2 @ 6.25")
}

func TestDraftReportJSONUsesPayload(t *testing.T) {
	out, err := Render(FormatJSON, DraftReport([]core.ExpenseDraft{sampleDraft()}))
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "Corner Cafe", decoded[0]["merchant"])
	require.Equal(t, "EUR", decoded[0]["currencyCode"])
}

func TestEmptyReports(t *testing.T) {
	out, err := Render(FormatTable, AttemptReport(nil))
	require.NoError(t, err)
	require.Contains(t, out, "(no extraction attempts)")

	out, err = Render(FormatMarkdown, BudgetReport(nil))
	require.NoError(t, err)
	require.Contains(t, out, "(no budgets)")
}

func TestAttemptReportFooterCountsFailures(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	report := AttemptReport([]core.ExtractionAttempt{
		{Identifier: "u1", Kind: core.AttemptKindImage, Provider: "openai", Succeeded: true, OccurredAt: now},
		{Identifier: "u1", Kind: core.AttemptKindImage, Provider: "ocr", Stage: core.StageOCR, OccurredAt: now},
	})
	require.Equal(t, "1/2 failed", report.Footer)
	require.Equal(t, "failed (ocr)", report.Rows[1][6])
}

func TestMarkdownEscapesPipes(t *testing.T) {
	out, err := Render(FormatMarkdown, Report{
		Title:  "Budgets",
		Header: []string{"Category", "Limit"},
		Rows:   [][]string{{"Food | Drink", "100"}},
	})
	require.NoError(t, err)
	require.Contains(t, out, "Food \\| Drink")
	require.True(t, strings.HasPrefix(out, "## Budgets"))
}

func TestQuotaReportShowsReset(t *testing.T) {
	oldest := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	report := QuotaReport([]store.QuotaEntry{{Action: "receipt_extraction", Identifier: "u1", Count: 3, Oldest: oldest, Newest: oldest}}, 10, 24*time.Hour)
	require.Equal(t, "3/10", report.Rows[0][2])
	require.Equal(t, "2025-03-11 08:00", report.Rows[0][4])
}

func TestJSONWithoutPayloadUsesHeaders(t *testing.T) {
	out, err := (&JSONFormatter{}).Format(Report{
		Header: []string{"a", "b"},
		Rows:   [][]string{{"1", "2"}},
	})
	require.NoError(t, err)
	require.JSONEq(t, `[{"a":"1","b":"2"}]`, out)
}
