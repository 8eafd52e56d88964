// Package core provides the transferências domain model.
//
// This file contains amount parsing and localized currency formatting.
// Amounts travel as decimal strings; they are parsed into decimal.Decimal
// for arithmetic and re-serialized only for display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// ParseAmount parses a decimal amount string. It accepts both dot (12.34)
// and comma (12,34) separators and rejects negative values; zero is allowed
// here so that fetched records are never dropped (positivity is enforced on
// Draft submission, not on display).
//
// Examples:
//
//	ParseAmount("100.50") -> 100.5, nil
//	ParseAmount("100,50") -> 100.5, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Signed returns the transaction amount with the sign implied by its kind:
// positive for RECEITA, negative for DESPESA.
func (t Transaction) Signed() (decimal.Decimal, error) {
	d, err := ParseAmount(t.Amount)
	if err != nil {
		return decimal.Zero, err
	}
	if t.Kind == Despesa {
		return d.Neg(), nil
	}
	return d, nil
}

// FormatBRL formats a decimal as a pt-BR currency string, e.g. "R$ 1.234,56".
// Display only; the result never round-trips into a stored value.
func FormatBRL(d decimal.Decimal) string {
	neg := d.IsNegative()
	f, _ := d.Abs().Float64()
	s := brl.Sprintf("R$ %v", number.Decimal(f, number.Scale(2)))
	if neg {
		return "-" + s
	}
	return s
}
