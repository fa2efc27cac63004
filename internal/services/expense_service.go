package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

var (
	ErrEmptyDescription = core.ErrEmptyDescription
	ErrInvalidAmount    = core.ErrInvalidAmount
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrNoExpenses       = errors.New("no expenses recorded")
)

const (
	// DefaultCategory is used for manual entries that leave the category blank.
	DefaultCategory = core.Food
	// DefaultImportPaymentMethod fills imported rows without a payment method.
	DefaultImportPaymentMethod = "Other"
)

// Store is the persistence the service needs.
type Store interface {
	Add(ctx context.Context, e core.Expense) (int64, error)
	List(ctx context.Context) ([]core.Expense, error)
	Get(ctx context.Context, id int64) (core.Expense, error)
	Delete(ctx context.Context, id int64) error
}

type Categorizer interface {
	Categorize(ctx context.Context, description string) (core.Category, error)
}

type Advisor interface {
	Tips(ctx context.Context, summary core.Summary) (string, error)
}

// EventPublisher announces committed changes. Implementations may be slow
// or unavailable; failures never undo a write.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, id int64) error
	PublishExpenseDeleted(ctx context.Context, id int64) error
}

// Gateway is satisfied by *gateway.Gateway.
type Gateway interface {
	Categorizer
	Advisor
}

// ExpenseService runs the user-facing commands on top of the store and the
// categorization gateway.
type ExpenseService struct {
	store     Store
	gateway   Gateway
	publisher EventPublisher
}

// NewExpenseService wires the command layer. publisher may be nil, in
// which case no events are emitted.
func NewExpenseService(store Store, gw Gateway, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		gateway:   gw,
		publisher: publisher,
	}
}

type AddExpenseInput struct {
	Date           string
	Description    string
	Amount         float64
	PaymentMethod  string
	Category       string
	AutoCategorize bool
}

// AddExpense validates the input, resolves the category and stores the row.
func (s *ExpenseService) AddExpense(ctx context.Context, in AddExpenseInput) (core.Expense, error) {
	e := core.Expense{
		Date:          strings.TrimSpace(in.Date),
		Description:   strings.TrimSpace(in.Description),
		Amount:        in.Amount,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		Category:      strings.TrimSpace(in.Category),
	}
	if e.Date == "" {
		e.Date = core.Today()
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if in.AutoCategorize {
		cat, err := s.gateway.Categorize(ctx, e.Description)
		if err != nil {
			return core.Expense{}, err
		}
		e.Category = cat.String()
	} else if e.Category == "" {
		e.Category = DefaultCategory.String()
	}

	id, err := s.store.Add(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	e.ID = id

	fields := applog.NewFields().
		WithComponent(applog.ComponentExpense).
		WithOperation(applog.OpCreate).
		WithExpense(e.ID, e.Description, e.Category, e.Amount)
	fields["auto_categorized"] = in.AutoCategorize
	slog.InfoContext(ctx, "Expense added", fields.ToSlice()...)

	s.publishCreated(ctx, e.ID)
	return e, nil
}

// ListExpenses returns all rows, newest first, narrowed by f.
func (s *ExpenseService) ListExpenses(ctx context.Context, f core.Filter) ([]core.Expense, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return f.Apply(all), nil
}

// DeleteExpense removes the row with the given id. Unknown ids are
// reported as ErrExpenseNotFound.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrExpenseNotFound
		}
		return fmt.Errorf("lookup expense: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id)

	s.publishDeleted(ctx, id)
	return nil
}

// ImportRow is one line of a bulk import. The category is always chosen
// by the gateway.
type ImportRow struct {
	Date          string
	Description   string
	Amount        float64
	PaymentMethod string
}

type ImportResult struct {
	Imported []core.Expense
}

func (r ImportResult) Count() int { return len(r.Imported) }

// ImportExpenses categorizes and stores rows in order. It stops at the
// first failing row; rows stored before it are kept and reported in the
// result alongside the error.
func (s *ExpenseService) ImportExpenses(ctx context.Context, rows []ImportRow) (ImportResult, error) {
	var res ImportResult
	for i, row := range rows {
		e, err := s.importRow(ctx, row)
		if err != nil {
			slog.WarnContext(ctx, "Import stopped",
				applog.FieldComponent, applog.ComponentExpense,
				applog.FieldOperation, applog.OpImport,
				"row", i+1,
				"imported", res.Count(),
				applog.FieldError, err)
			return res, fmt.Errorf("import row %d: %w", i+1, err)
		}
		res.Imported = append(res.Imported, e)
	}

	slog.InfoContext(ctx, "Import completed",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldOperation, applog.OpImport,
		"imported", res.Count())
	return res, nil
}

func (s *ExpenseService) importRow(ctx context.Context, row ImportRow) (core.Expense, error) {
	e := core.Expense{
		Date:          strings.TrimSpace(row.Date),
		Description:   strings.TrimSpace(row.Description),
		Amount:        row.Amount,
		PaymentMethod: strings.TrimSpace(row.PaymentMethod),
	}
	switch {
	case e.Date == "":
		return core.Expense{}, core.ErrInvalidDate
	case e.Description == "":
		return core.Expense{}, ErrEmptyDescription
	case e.Amount < 0:
		return core.Expense{}, ErrInvalidAmount
	}
	if e.PaymentMethod == "" {
		e.PaymentMethod = DefaultImportPaymentMethod
	}

	cat, err := s.gateway.Categorize(ctx, e.Description)
	if err != nil {
		return core.Expense{}, err
	}
	e.Category = cat.String()

	id, err := s.store.Add(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	e.ID = id
	s.publishCreated(ctx, id)
	return e, nil
}

// Summary totals spend per category over every stored expense.
func (s *ExpenseService) Summary(ctx context.Context) (core.Summary, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return core.Summarize(all), nil
}

// Tips asks the gateway for saving tips. It needs at least one expense.
func (s *ExpenseService) Tips(ctx context.Context) (string, error) {
	summary, err := s.Summary(ctx)
	if err != nil {
		return "", err
	}
	if len(summary) == 0 {
		return "", ErrNoExpenses
	}
	return s.gateway.Tips(ctx, summary)
}

// Categorize previews the label the gateway would assign.
func (s *ExpenseService) Categorize(ctx context.Context, description string) (core.Category, error) {
	return s.gateway.Categorize(ctx, description)
}

func (s *ExpenseService) publishCreated(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseCreated(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldComponent, applog.ComponentExpense,
			applog.FieldOperation, applog.OpPublish,
			applog.FieldExpenseID, id,
			applog.FieldError, err)
	}
}

func (s *ExpenseService) publishDeleted(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseDeleted(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldComponent, applog.ComponentExpense,
			applog.FieldOperation, applog.OpPublish,
			applog.FieldExpenseID, id,
			applog.FieldError, err)
	}
}
