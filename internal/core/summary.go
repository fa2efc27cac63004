package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Summary maps a category label to its total spend.
type Summary map[string]float64

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string  `json:"category"`
	Amount float64 `json:"amount"`
}

// Summarize aggregates expenses by category. Totals are accumulated as
// decimals so repeated float additions do not drift.
func Summarize(expenses []Expense) Summary {
	totals := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		totals[e.Category] = totals[e.Category].Add(decimal.NewFromFloat(e.Amount))
	}
	out := make(Summary, len(totals))
	for name, total := range totals {
		out[name] = total.InexactFloat64()
	}
	return out
}

// Sorted returns the entries by descending total, ties broken by name.
func (s Summary) Sorted() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(s))
	for name, amount := range s {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Total returns the sum of all categories.
func (s Summary) Total() float64 {
	total := decimal.Zero
	for _, amount := range s {
		total = total.Add(decimal.NewFromFloat(amount))
	}
	return total.InexactFloat64()
}

// String renders the summary as "Food: 1234.00, Transport: 567.00" in
// Sorted order.
func (s Summary) String() string {
	parts := make([]string, 0, len(s))
	for _, ca := range s.Sorted() {
		parts = append(parts, fmt.Sprintf("%s: %.2f", ca.Name, ca.Amount))
	}
	return strings.Join(parts, ", ")
}
