package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidJSON = errors.New("invalid JSON body")
	errInvalidID   = errors.New("invalid expense id")
)

// flexAmount accepts either a JSON number or a numeric string such as "12,50".
type flexAmount float64

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		*a = flexAmount(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = flexAmount(v)
	return nil
}

type addExpenseRequest struct {
	Date           string     `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description    string     `json:"description" validate:"required,max=500"`
	Amount         flexAmount `json:"amount" validate:"gt=0"`
	PaymentMethod  string     `json:"payment_method" validate:"max=100"`
	Category       string     `json:"category" validate:"omitempty,expense_category"`
	AutoCategorize bool       `json:"auto_categorize"`
}

func (r addExpenseRequest) toInput() services.AddExpenseInput {
	return services.AddExpenseInput{
		Date:           r.Date,
		Description:    r.Description,
		Amount:         float64(r.Amount),
		PaymentMethod:  r.PaymentMethod,
		Category:       r.Category,
		AutoCategorize: r.AutoCategorize,
	}
}

// Rows are checked one at a time by the service so that earlier rows are
// kept when a later one fails.
type importRequest struct {
	Rows []importRowRequest `json:"rows" validate:"required,min=1,max=500"`
}

type importRowRequest struct {
	Date          string     `json:"date"`
	Description   string     `json:"description"`
	Amount        flexAmount `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
}

func (r importRequest) toRows() []services.ImportRow {
	rows := make([]services.ImportRow, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = services.ImportRow{
			Date:          row.Date,
			Description:   row.Description,
			Amount:        float64(row.Amount),
			PaymentMethod: row.PaymentMethod,
		}
	}
	return rows
}

type categorizeRequest struct {
	Description string `json:"description" validate:"max=500"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("expense_category", validateExpenseCategory)
	return v
}

func validateExpenseCategory(fl validator.FieldLevel) bool {
	return core.Category(strings.TrimSpace(fl.Field().String())).IsValid()
}

// decodeJSON reads a single JSON object into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errInvalidJSON, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data after object", errInvalidJSON)
	}
	return s.validate.Struct(dst)
}

// parseFilter reads repeatable category and payment_method params and the
// from/to date bounds.
func parseFilter(r *http.Request) (core.Filter, error) {
	q := r.URL.Query()
	f := core.Filter{
		Categories:     nonEmpty(q["category"]),
		PaymentMethods: nonEmpty(q["payment_method"]),
		From:           strings.TrimSpace(q.Get("from")),
		To:             strings.TrimSpace(q.Get("to")),
	}
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := core.ParseDate(d); err != nil {
			return core.Filter{}, err
		}
	}
	return f, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
