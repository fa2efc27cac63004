// Package worker replays expense events onto the spreadsheet mirror.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// Store is the read side of the expense store.
type Store interface {
	Get(ctx context.Context, id int64) (core.Expense, error)
	List(ctx context.Context) ([]core.Expense, error)
}

// SyncWorker keeps the mirror in step with the store.
type SyncWorker struct {
	store  Store
	mirror sheets.IndexedMirror
}

func NewSyncWorker(store Store, mirror sheets.IndexedMirror) *SyncWorker {
	return &SyncWorker{store: store, mirror: mirror}
}

// HandleEvent applies one event to the mirror. Its signature matches
// amqp.EventHandler.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldOperation, applog.OpSync,
		applog.FieldEventType, ev.Type,
		applog.FieldExpenseID, ev.ID)

	switch ev.Type {
	case amqp.EventExpenseCreated:
		return w.syncCreated(ctx, ev.ID)
	case amqp.EventExpenseDeleted:
		if err := w.mirror.DeleteExpense(ctx, ev.ID); err != nil {
			return fmt.Errorf("delete from mirror: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", amqp.ErrUnknownEventType, ev.Type)
	}
}

func (w *SyncWorker) syncCreated(ctx context.Context, id int64) error {
	e, err := w.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// deleted before the event was consumed; its delete event follows
		slog.InfoContext(ctx, "Expense no longer stored, skipping",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldExpenseID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	ref, err := w.mirror.AppendExpense(ctx, e)
	if err != nil {
		return fmt.Errorf("append to mirror: %w", err)
	}
	slog.InfoContext(ctx, "Expense synced",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldExpenseID, id,
		"mirror_ref", ref)
	return nil
}

// ResyncStats counts the changes a Resync made.
type ResyncStats struct {
	Appended int
	Removed  int
}

// Resync reconciles the mirror with the store: stored rows missing from
// the mirror are appended and mirrored rows no longer stored are removed.
// It recovers from events lost while the worker was down.
//
// Both sides are read concurrently. Changes are then applied one at a
// time, appends oldest first.
func (w *SyncWorker) Resync(ctx context.Context) (ResyncStats, error) {
	var (
		stats    ResyncStats
		stored   []core.Expense
		mirrored []int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if stored, err = w.store.List(gctx); err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if mirrored, err = w.mirror.MirroredIDs(gctx); err != nil {
			return fmt.Errorf("list mirrored ids: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return stats, err
	}

	err := w.apply(ctx, stored, mirrored, &stats)
	slog.InfoContext(ctx, "Mirror resync finished",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldOperation, applog.OpSync,
		"stored", len(stored),
		"mirrored", len(mirrored),
		"appended", stats.Appended,
		"removed", stats.Removed,
		applog.FieldSuccess, err == nil)
	return stats, err
}

// apply runs sequentially: the sheet addresses rows by position, so each
// removal must see the layout left by the previous one.
func (w *SyncWorker) apply(ctx context.Context, stored []core.Expense, mirrored []int64, stats *ResyncStats) error {
	inMirror := make(map[int64]struct{}, len(mirrored))
	for _, id := range mirrored {
		inMirror[id] = struct{}{}
	}
	inStore := make(map[int64]struct{}, len(stored))
	for _, e := range stored {
		inStore[e.ID] = struct{}{}
	}

	// stored is newest first
	for i := len(stored) - 1; i >= 0; i-- {
		e := stored[i]
		if _, ok := inMirror[e.ID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := w.mirror.AppendExpense(ctx, e); err != nil {
			return fmt.Errorf("append expense %d: %w", e.ID, err)
		}
		stats.Appended++
	}
	for _, id := range mirrored {
		if _, ok := inStore[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.mirror.DeleteExpense(ctx, id); err != nil {
			return fmt.Errorf("remove expense %d: %w", id, err)
		}
		stats.Removed++
	}
	return nil
}
