// Package core holds the domain types shared by the engine, store and HTTP
// layers.
//
// Importing core switches shopspring/decimal to encode every Decimal as a
// bare JSON number (decimal.MarshalJSONWithoutQuotes). The setting is global
// to the binary: every package that marshals a decimal.Decimal, not only
// core's types, emits numbers instead of quoted strings. Decoding accepts
// both forms either way.
package core

import "github.com/shopspring/decimal"

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}
