// Package memory is an in-process expense mirror.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

var _ sheets.IndexedMirror = (*Mirror)(nil)

type Mirror struct {
	mu    sync.Mutex
	order []int64
	items map[int64]core.Expense
}

func New() *Mirror {
	return &Mirror{items: make(map[int64]core.Expense)}
}

// AppendExpense stores a copy of e. Appending an id that is already
// present keeps the first copy.
func (m *Mirror) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if e.ID <= 0 {
		return "", fmt.Errorf("mirror expense: invalid id %d", e.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[e.ID]; !ok {
		m.order = append(m.order, e.ID)
		m.items[e.ID] = e
	}
	return rowRef(e.ID), nil
}

func (m *Mirror) DeleteExpense(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return nil
	}
	delete(m.items, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mirror) MirroredIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.order...), nil
}

// Expenses returns the mirrored rows in append order.
func (m *Mirror) Expenses() []core.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Expense, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out
}

func rowRef(id int64) string {
	return fmt.Sprintf("mem:%d", id)
}
