package driver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeDraft(t *testing.T) {
	reply := "```json\n" + `{"merchant":" Corner Grocer ","date":"2025-03-08","total":23.45,"category":"Groceries",
"lineItems":[{"description":"Milk","quantity":2,"price":3.10},{"description":"Bread","price":"2.50"}]}` + "\n```"

	draft, err := DecodeDraft("openai", reply)
	require.NoError(t, err)
	require.Equal(t, "Corner Grocer", draft.Merchant)
	require.Equal(t, "2025-03-08", draft.Date)
	require.Equal(t, "23.45", draft.Total.String())
	require.Equal(t, "Groceries", draft.Category)
	require.Len(t, draft.LineItems, 2)
	require.Equal(t, "2", draft.LineItems[0].Quantity.String())
	require.Equal(t, "1", draft.LineItems[1].Quantity.String())
	require.Equal(t, "2.5", draft.LineItems[1].Price.String())
}

func TestDecodeDraftDefaultsLineItems(t *testing.T) {
	draft, err := DecodeDraft("xai", `Here you go: {"merchant":"Cafe","date":"2025-01-02","total":"4.20","category":"Food & Dining"}`)
	require.NoError(t, err)
	require.NotNil(t, draft.LineItems)
	require.Empty(t, draft.LineItems)

	draft, err = DecodeDraft("xai", `{"merchant":"Cafe","date":"2025-01-02","total":4.2,"category":"Food & Dining","lineItems":null}`)
	require.NoError(t, err)
	require.NotNil(t, draft.LineItems)
}

func TestDecodeDraftRejectsMissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"missing category": `{"merchant":"Cafe","date":"2025-01-02","total":4.2}`,
		"missing merchant": `{"date":"2025-01-02","total":4.2,"category":"Other"}`,
		"blank merchant":   `{"merchant":"  ","date":"2025-01-02","total":4.2,"category":"Other"}`,
		"bad date":         `{"merchant":"Cafe","date":"2025-13-40","total":4.2,"category":"Other"}`,
		"negative total":   `{"merchant":"Cafe","date":"2025-01-02","total":-1,"category":"Other"}`,
		"not json":         `I could not read this receipt.`,
		"declined":         `{"error":"not a receipt"}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDraft("anthropic", reply)
			var dataErr *DataError
			require.True(t, errors.As(err, &dataErr), "got %v", err)
			require.Equal(t, "anthropic", dataErr.Provider)
		})
	}
}

func TestDecodeDrafts(t *testing.T) {
	drafts, err := DecodeDrafts("openai", `{"receipts":[
{"merchant":"Taxi","date":"2025-05-01","total":18,"category":"Transportation"},
{"merchant":"Lunch","date":"2025-05-01","total":"12.5","category":"Food & Dining","lineItems":[]}]}`)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	require.Equal(t, "Taxi", drafts[0].Merchant)
	require.NotNil(t, drafts[0].LineItems)

	drafts, err = DecodeDrafts("openai", `{"receipts":[]}`)
	require.NoError(t, err)
	require.Empty(t, drafts)

	drafts, err = DecodeDrafts("openai", `[{"merchant":"Taxi","date":"2025-05-01","total":18,"category":"Transportation"}]`)
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	_, err = DecodeDrafts("openai", `{"items":[]}`)
	require.Error(t, err)

	_, err = DecodeDrafts("openai", `{"receipts":[{"merchant":"Taxi","date":"2025-05-01","total":18}]}`)
	var dataErr *DataError
	require.True(t, errors.As(err, &dataErr))
	require.Contains(t, err.Error(), "receipt 0")
}

func TestDraftSchemaCompiledOnce(t *testing.T) {
	first, err := compiledDraftSchema()
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = DecodeDraft("openai", `{"merchant":"Cafe","date":"2025-01-02","total":4.2,"category":"Other"}`)
	require.NoError(t, err)

	second, err := compiledDraftSchema()
	require.NoError(t, err)
	require.Same(t, first, second)
}
