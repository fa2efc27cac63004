package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for the spreadsheet mirror of the expense table.
type (
	// ExpenseMirror receives committed changes. Both operations must be
	// safe to repeat: events may be delivered more than once.
	ExpenseMirror interface {
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
		DeleteExpense(ctx context.Context, id int64) error
	}

	// MirrorIndex lists the expense ids currently present in the mirror.
	MirrorIndex interface {
		MirroredIDs(ctx context.Context) ([]int64, error)
	}

	// IndexedMirror is a mirror that can be reconciled against the store.
	IndexedMirror interface {
		ExpenseMirror
		MirrorIndex
	}
)
