package driver

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/schema"
	"github.com/shopspring/decimal"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

//go:embed schemas/expense-draft.schema.json
var draftSchema []byte

var (
	draftValidatorOnce sync.Once
	draftValidator     *schema.Validator
	draftValidatorErr  error
)

// compiledDraftSchema compiles the embedded draft schema on first use.
func compiledDraftSchema() (*schema.Validator, error) {
	draftValidatorOnce.Do(func() {
		draftValidator, draftValidatorErr = schema.NewValidator(draftSchema)
	})
	return draftValidator, draftValidatorErr
}

type wireLineItem struct {
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
}

type wireDraft struct {
	Merchant  string          `json:"merchant"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currencyCode"`
	Category  string          `json:"category"`
	LineItems []wireLineItem  `json:"lineItems"`
}

// DecodeDraft parses a model reply into a validated expense draft. Replies may
// be wrapped in markdown fences or surrounded by prose; the first JSON object
// is used. merchant, date, total and category are required; a missing
// lineItems becomes an empty list.
func DecodeDraft(provider, text string) (core.ExpenseDraft, error) {
	payload, err := extractJSON(text, '{', '}')
	if err != nil {
		return core.ExpenseDraft{}, &DataError{Provider: provider, Reason: err.Error(), Raw: []byte(text)}
	}
	return decodeDraftPayload(provider, payload)
}

// DecodeDrafts parses a reply of the form {"receipts":[...]} (or a bare array)
// into drafts. Any invalid element fails the whole reply.
func DecodeDrafts(provider, text string) ([]core.ExpenseDraft, error) {
	trimmed := stripFences(text)

	var items []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, &DataError{Provider: provider, Reason: "response is not a JSON array", Raw: []byte(text)}
		}
	} else {
		payload, err := extractJSON(text, '{', '}')
		if err != nil {
			return nil, &DataError{Provider: provider, Reason: err.Error(), Raw: []byte(text)}
		}
		var envelope struct {
			Receipts *[]json.RawMessage `json:"receipts"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Receipts == nil {
			return nil, &DataError{Provider: provider, Reason: "response is missing receipts", Raw: payload}
		}
		items = *envelope.Receipts
	}

	drafts := make([]core.ExpenseDraft, 0, len(items))
	for i, item := range items {
		draft, err := decodeDraftPayload(provider, item)
		if err != nil {
			return nil, fmt.Errorf("receipt %d: %w", i, err)
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func decodeDraftPayload(provider string, payload []byte) (core.ExpenseDraft, error) {
	var probe map[string]any
	if err := json.Unmarshal(payload, &probe); err != nil {
		return core.ExpenseDraft{}, &DataError{Provider: provider, Reason: "response is not a JSON object", Raw: payload}
	}
	if msg, ok := probe["error"].(string); ok && probe["merchant"] == nil {
		return core.ExpenseDraft{}, &DataError{Provider: provider, Reason: "model declined: " + msg, Raw: payload}
	}

	validator, err := compiledDraftSchema()
	if err != nil {
		return core.ExpenseDraft{}, fmt.Errorf("compile draft schema: %w", err)
	}
	diagnostics, err := validator.ValidateJSON(payload)
	if err != nil {
		return core.ExpenseDraft{}, &DataError{Provider: provider, Reason: err.Error(), Raw: payload}
	}
	if len(diagnostics) > 0 {
		return core.ExpenseDraft{}, &DataError{Provider: provider, Reason: "schema validation failed: " + diagnostics[0].Message, Raw: payload}
	}

	var wire wireDraft
	if err := json.Unmarshal(payload, &wire); err != nil {
		return core.ExpenseDraft{}, &DataError{Provider: provider, Reason: err.Error(), Raw: payload}
	}

	draft := core.ExpenseDraft{
		Merchant:  strings.TrimSpace(wire.Merchant),
		Date:      strings.TrimSpace(wire.Date),
		Total:     wire.Total,
		Currency:  strings.ToUpper(strings.TrimSpace(wire.Currency)),
		Category:  strings.TrimSpace(wire.Category),
		LineItems: make([]core.LineItem, 0, len(wire.LineItems)),
	}
	if draft.Merchant == "" || draft.Category == "" {
		return core.ExpenseDraft{}, &DataError{Provider: provider, Reason: "merchant and category must not be blank", Raw: payload}
	}
	if _, err := time.Parse(core.DateLayout, draft.Date); err != nil {
		return core.ExpenseDraft{}, &DataError{Provider: provider, Reason: fmt.Sprintf("invalid date %q", draft.Date), Raw: payload}
	}
	if draft.Total.IsNegative() {
		return core.ExpenseDraft{}, &DataError{Provider: provider, Reason: "total must not be negative", Raw: payload}
	}

	for _, item := range wire.LineItems {
		line := core.LineItem{
			Description: strings.TrimSpace(item.Description),
			Quantity:    decimal.NewFromInt(1),
		}
		if item.Quantity != nil && item.Quantity.IsPositive() {
			line.Quantity = *item.Quantity
		}
		if item.Price != nil && !item.Price.IsNegative() {
			line.Price = *item.Price
		}
		draft.LineItems = append(draft.LineItems, line)
	}
	return draft, nil
}

func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		// drop the language tag line
		trimmed = trimmed[nl+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func extractJSON(text string, openCh, closeCh byte) ([]byte, error) {
	trimmed := []byte(stripFences(text))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	start := bytes.IndexByte(trimmed, openCh)
	end := bytes.LastIndexByte(trimmed, closeCh)
	if start < 0 || end <= start {
		return nil, fmt.Errorf("response does not contain a JSON object")
	}
	return trimmed[start : end+1], nil
}
