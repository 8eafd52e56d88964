// Package view derives presentation state from a fetched transaction
// snapshot: distinct tag names, the tag-filtered subsequence and the signed
// running total. Everything here is a pure function over the snapshot; the
// source list is never mutated.
package view

import (
	"sort"

	"github.com/shopspring/decimal"

	"transferencias/internal/core"
)

// FilterAll is the sentinel filter value meaning "show all".
const FilterAll = "todos"

// TagNames returns the distinct tag names present across the snapshot,
// sorted for stable rendering.
func TagNames(txs []core.Transaction) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, tx := range txs {
		for _, tag := range tx.Tags {
			if _, ok := seen[tag.Name]; ok {
				continue
			}
			seen[tag.Name] = struct{}{}
			names = append(names, tag.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Filter returns the subsequence of txs matching the selected tag name.
// The sentinel FilterAll (or an empty filter) selects everything.
func Filter(txs []core.Transaction, tag string) []core.Transaction {
	if tag == "" || tag == FilterAll {
		return txs
	}
	var out []core.Transaction
	for _, tx := range txs {
		if tx.HasTag(tag) {
			out = append(out, tx)
		}
	}
	return out
}

// Total folds the signed amounts of txs: RECEITA adds, DESPESA subtracts.
// Entries whose amount does not parse are skipped rather than poisoning the
// whole total; the API owns amount integrity.
func Total(txs []core.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		signed, err := tx.Signed()
		if err != nil {
			continue
		}
		sum = sum.Add(signed)
	}
	return sum
}

// Summary is the "showing X of Y, total Z" line under the table.
type Summary struct {
	Shown int
	Of    int
	Total decimal.Decimal
}

// Summarize builds the summary for a filtered view over the full snapshot.
func Summarize(all, filtered []core.Transaction) Summary {
	return Summary{
		Shown: len(filtered),
		Of:    len(all),
		Total: Total(filtered),
	}
}
