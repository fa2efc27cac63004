// Package storage owns the persisted expense table.
//
// Every operation is a single autocommitted statement; there is no
// transaction spanning more than one call and no retry on failure.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fintrack/internal/core"
	applog "fintrack/internal/log"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound         = errors.New("expense not found")
	ErrNonNumericAmount = errors.New("amount is not a finite number")
)

const (
	insertExpense = `INSERT INTO expenses(date, description, category, amount, payment_method) VALUES (?, ?, ?, ?, ?)`
	selectColumns = `SELECT id, date, description, category, amount, payment_method FROM expenses`
	listExpenses  = selectColumns + ` ORDER BY date DESC, id DESC`
	getExpense    = selectColumns + ` WHERE id = ?`
	deleteExpense = `DELETE FROM expenses WHERE id = ?`
)

// Store is the SQLite-backed expense store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database file at dbPath. It does
// not create the schema; call Init for that.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Init ensures the expenses table exists. It is safe to call any number
// of times and leaves existing rows untouched.
func (s *Store) Init(ctx context.Context) error {
	version, err := migrateSchema(s.path)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	slog.DebugContext(ctx, "Expense schema ready",
		applog.FieldComponent, applog.ComponentStorage,
		"path", s.path,
		"schema_version", version)
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add inserts e and returns the id assigned by the database. e.ID is
// ignored. An empty payment method is stored as NULL.
func (s *Store) Add(ctx context.Context, e core.Expense) (int64, error) {
	if !core.IsFinite(e.Amount) {
		return 0, ErrNonNumericAmount
	}

	res, err := s.db.ExecContext(ctx, insertExpense,
		e.Date, e.Description, e.Category, e.Amount, nullString(e.PaymentMethod))
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldOperation, applog.OpCreate,
		"id", id,
		"date", e.Date,
		"category", e.Category,
		"amount", e.Amount)

	return id, nil
}

// List returns every expense ordered by date descending, then id
// descending so same-day entries show the most recent insert first.
func (s *Store) List(ctx context.Context) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// Get returns the expense with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx, getExpense, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// Delete removes the expense with the given id. Deleting an id that does
// not exist is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, deleteExpense, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldOperation, applog.OpDelete,
		"id", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (core.Expense, error) {
	var (
		e       core.Expense
		payment sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Date, &e.Description, &e.Category, &e.Amount, &payment); err != nil {
		return core.Expense{}, err
	}
	e.PaymentMethod = payment.String
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
