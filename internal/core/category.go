package core

// Category is one of the fixed classification labels.
type Category string

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Utilities     Category = "Utilities"
	Housing       Category = "Housing"
	Healthcare    Category = "Healthcare"
	Entertainment Category = "Entertainment"
	Shopping      Category = "Shopping"
	Education     Category = "Education"
	Bills         Category = "Bills"
	Other         Category = "Other"
)

// FallbackCategory is used whenever a classification cannot be trusted.
const FallbackCategory = Other

var categories = []Category{
	Food, Transport, Utilities, Housing, Healthcare,
	Entertainment, Shopping, Education, Bills, Other,
}

// Categories returns the allowed labels in their canonical order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// CategoryNames returns the allowed labels as plain strings.
func CategoryNames() []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}

// IsValid reports whether c is exactly one of the allowed labels.
func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
