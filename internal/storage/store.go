// Package storage defines the persistence contract shared by the tally
// engine and the entry journal, with a Postgres implementation and a
// single-file snapshot implementation for small deployments.
package storage

import (
	"context"
	"errors"

	"licznik.app/server/internal/models"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("entry not found")

// Adjustment is the result of an atomic counter adjustment.
type Adjustment struct {
	// Count is the counter value after the adjustment.
	Count int64
	// Clamped is true when a decrement would have pushed the counter
	// below zero and was floored instead. A clamp means the counter and
	// the journal have drifted apart.
	Clamped bool
}

// Store is the durable home of the counter set and the entry journal.
// Counter adjustments must be atomic and conditional inside the store; a
// read-modify-write across two calls is a lost-update race under concurrent
// submissions.
type Store interface {
	// CounterSet returns the current count for every configured
	// category, creating zeroed counters lazily for categories that have
	// never been touched.
	CounterSet(ctx context.Context) (models.CounterSet, error)

	// AtomicAdjust adds delta to one category's counter in a single
	// atomic operation, flooring at zero.
	AtomicAdjust(ctx context.Context, cat models.Category, delta int64) (Adjustment, error)

	// ResetCounterSet zeroes every counter as one logical operation.
	ResetCounterSet(ctx context.Context) error

	// SetCount overwrites one counter. Used only by reconciliation
	// repair, where the journal is the source of truth.
	SetCount(ctx context.Context, cat models.Category, count int64) error

	// InsertEntry appends an entry (and its gallery) to the journal.
	InsertEntry(ctx context.Context, entry *models.Entry) error

	// Entry fetches one entry by id, or ErrNotFound.
	Entry(ctx context.Context, id string) (*models.Entry, error)

	// DeleteEntry removes one entry and its gallery rows. Deleting an
	// absent id is not an error.
	DeleteEntry(ctx context.Context, id string) error

	// ListEntries returns up to limit entries in strict
	// reverse-insertion order, newest first.
	ListEntries(ctx context.Context, limit int) ([]models.Entry, error)

	// DeleteAllEntries clears the whole journal.
	DeleteAllEntries(ctx context.Context) error

	// LiveTotals counts live entries per category, for reconciliation.
	LiveTotals(ctx context.Context) (map[models.Category]int64, error)

	// Close releases the backing resources.
	Close() error
}
