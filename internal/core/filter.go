package core

// Filter narrows a full expense listing for display. Every criterion is
// optional; an empty Filter matches everything.
type Filter struct {
	Categories     []string
	PaymentMethods []string
	// From and To bound the date range inclusively, compared as ISO text.
	// Both must be set for the range to apply.
	From string
	To   string
}

// IsEmpty reports whether the filter has no criteria.
func (f Filter) IsEmpty() bool {
	return len(f.Categories) == 0 && len(f.PaymentMethods) == 0 && (f.From == "" || f.To == "")
}

// Match reports whether e satisfies every criterion.
func (f Filter) Match(e Expense) bool {
	if len(f.Categories) > 0 && !contains(f.Categories, e.Category) {
		return false
	}
	if len(f.PaymentMethods) > 0 && !contains(f.PaymentMethods, e.PaymentMethod) {
		return false
	}
	if f.From != "" && f.To != "" {
		if e.Date < f.From || e.Date > f.To {
			return false
		}
	}
	return true
}

// Apply returns the matching expenses, preserving order.
func (f Filter) Apply(expenses []Expense) []Expense {
	if f.IsEmpty() {
		return expenses
	}
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
