package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout expenses are stored with.
const DateLayout = "2006-01-02"

type (
	// Expense is a single persisted transaction. Field order follows the
	// stored projection: id, date, description, category, amount, payment_method.
	Expense struct {
		ID            int64   `json:"id"`
		Date          string  `json:"date"`
		Description   string  `json:"description"`
		Category      string  `json:"category"`
		Amount        float64 `json:"amount"`
		PaymentMethod string  `json:"payment_method,omitempty"` // empty means NULL
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
)

// Validate applies the boundary checks a caller performs before storing
// an expense. The store itself does not call it.
func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// FormatDate renders t as an ISO calendar date without timezone.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// Today returns the current local date in ISO form.
func Today() string {
	return FormatDate(time.Now())
}
