// Package tally is the engine that keeps the per-category counters
// consistent with the entry journal. Every counter mutation in the system
// goes through it.
package tally

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"licznik.app/server/internal/models"
	"licznik.app/server/internal/storage"
)

var (
	// ErrInvalidCategory is returned for a category outside the
	// configured set. Nothing is mutated.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrStorageUnavailable wraps transient persistence failures. The
	// whole request is safe to retry; no partial mutation committed.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Engine applies validated counter mutations. The stored counters are
// authoritative for reads; the journal is the source of truth whenever the
// two disagree, and Reconcile repairs the counters from it.
type Engine struct {
	store      storage.Store
	logger     *zap.SugaredLogger
	categories []models.Category
	valid      map[models.Category]bool
	repair     bool
}

// NewEngine builds an engine over the given store and category set.
func NewEngine(store storage.Store, categories []models.Category, logger *zap.SugaredLogger) *Engine {
	valid := make(map[models.Category]bool, len(categories))
	for _, cat := range categories {
		valid[cat] = true
	}
	return &Engine{store: store, logger: logger, categories: categories, valid: valid, repair: true}
}

// DisableRepair turns off automatic drift repair. The counters-only reset
// profile breaks the counter==live-entries relation on purpose, so counters
// cannot be recomputed from the journal there.
func (e *Engine) DisableRepair() { e.repair = false }

// Categories returns the configured category set.
func (e *Engine) Categories() []models.Category { return e.categories }

// ParseCategory validates a raw category string against the configured set.
func (e *Engine) ParseCategory(raw string) (models.Category, error) {
	cat := models.Category(raw)
	if !e.valid[cat] {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
	return cat, nil
}

// Counters returns the current counter set, lazily initialized to zeros.
func (e *Engine) Counters(ctx context.Context) (models.CounterSet, error) {
	set, err := e.store.CounterSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return set, nil
}

// Increment adds one to the category's counter in a single atomic store
// operation. Concurrent increments must all be durably reflected.
func (e *Engine) Increment(ctx context.Context, cat models.Category) error {
	if !e.valid[cat] {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, cat)
	}
	if _, err := e.store.AtomicAdjust(ctx, cat, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Decrement subtracts one, floored at zero. The floor exists defensively: a
// live entry is being removed, so the counter should never already be zero.
// A triggered clamp is drift evidence and immediately runs a reconciliation
// pass.
func (e *Engine) Decrement(ctx context.Context, cat models.Category) error {
	if !e.valid[cat] {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, cat)
	}
	adj, err := e.store.AtomicAdjust(ctx, cat, -1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if adj.Clamped {
		e.logger.Errorw("counter decrement clamped at zero, counters have drifted from the journal",
			"category", cat.String(),
		)
		if e.repair {
			if err := e.Reconcile(ctx); err != nil {
				e.logger.Errorw("reconciliation after clamp failed", "error", err)
			}
		}
	}
	return nil
}

// ResetAll zeroes every counter as one logical operation.
func (e *Engine) ResetAll(ctx context.Context) error {
	if err := e.store.ResetCounterSet(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Reconcile recomputes each counter from the live entries and repairs any
// stored count that disagrees. Drift is logged loudly but never surfaced to
// callers; it can only appear after a crash between an entry write and its
// counter adjustment.
func (e *Engine) Reconcile(ctx context.Context) error {
	totals, err := e.store.LiveTotals(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	stored, err := e.store.CounterSet(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	for _, cat := range e.categories {
		want := totals[cat]
		got := stored[cat]
		if want == got {
			continue
		}
		e.logger.Errorw("consistency violation: counter disagrees with journal, repairing",
			"category", cat.String(),
			"counter", got,
			"live_entries", want,
		)
		if err := e.store.SetCount(ctx, cat, want); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	return nil
}
