// Package journal owns the append-only history of submissions and drives
// the tally engine in lockstep with entry creation and deletion.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"licznik.app/server/internal/media"
	"licznik.app/server/internal/models"
	"licznik.app/server/internal/storage"
	"licznik.app/server/internal/tally"
)

// ErrInvalidLocation is returned when only one of the two coordinates is
// present.
var ErrInvalidLocation = errors.New("location requires both latitude and longitude")

// Journal coordinates entry lifecycle with counter adjustments. Entry plus
// counter mutate as one logical unit: the second write failing compensates
// the first, and any drift a crash leaves behind is repaired by the periodic
// reconciliation pass.
type Journal struct {
	store            storage.Store
	engine           *tally.Engine
	media            media.Store
	logger           *zap.SugaredLogger
	historyLimit     int
	destructiveReset bool
}

// Options tune journal behavior per deployment profile.
type Options struct {
	// HistoryLimit bounds every read of recent entries.
	HistoryLimit int
	// DestructiveReset makes an admin reset clear the whole journal
	// along with the counters, restoring the cross-entity invariant in
	// one step. When false a reset only zeroes the counters.
	DestructiveReset bool
}

// New builds a journal over the shared store.
func New(store storage.Store, engine *tally.Engine, mediaStore media.Store, logger *zap.SugaredLogger, opts Options) *Journal {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	return &Journal{
		store:            store,
		engine:           engine,
		media:            mediaStore,
		logger:           logger,
		historyLimit:     opts.HistoryLimit,
		destructiveReset: opts.DestructiveReset,
	}
}

// CreateParams carries a validated-upload submission into the journal. Any
// referenced image must already be durably stored before Create is called.
type CreateParams struct {
	Category  string
	Title     string
	Text      string
	Image     *models.ImageRef
	Gallery   []models.ImageRef
	Latitude  *float64
	Longitude *float64
}

// Create validates the submission, appends the entry and increments its
// category counter as one logical unit.
func (j *Journal) Create(ctx context.Context, params CreateParams) (*models.Entry, error) {
	cat, err := j.engine.ParseCategory(params.Category)
	if err != nil {
		return nil, err
	}

	if (params.Latitude == nil) != (params.Longitude == nil) {
		return nil, ErrInvalidLocation
	}
	var loc *models.Location
	if params.Latitude != nil {
		loc = &models.Location{Latitude: *params.Latitude, Longitude: *params.Longitude}
	}

	now := time.Now()
	entry := &models.Entry{
		ID:          uuid.New().String(),
		Category:    cat,
		Title:       params.Title,
		Text:        params.Text,
		Image:       params.Image,
		Gallery:     params.Gallery,
		Location:    loc,
		DisplayDate: now.Format(models.DisplayDateFormat),
		CreatedAt:   now,
	}

	if err := j.store.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", tally.ErrStorageUnavailable, err)
	}

	if err := j.engine.Increment(ctx, cat); err != nil {
		// Compensate so the entry and its count never commit apart.
		// If the compensation also fails the reconciler repairs the
		// drift from the journal.
		if delErr := j.store.DeleteEntry(ctx, entry.ID); delErr != nil {
			j.logger.Errorw("failed to compensate entry after counter increment failure",
				"entry_id", entry.ID,
				"category", cat.String(),
				"error", delErr,
			)
		}
		return nil, err
	}

	return entry, nil
}

// Delete removes an entry, its counter contribution and (best-effort) its
// stored media. Deleting an unknown id is an idempotent success and reports
// deleted=false.
func (j *Journal) Delete(ctx context.Context, id string) (bool, error) {
	entry, err := j.store.Entry(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", tally.ErrStorageUnavailable, err)
	}

	// Media cleanup is decoupled from the critical path: an unreachable
	// image host orphans objects, it never blocks or corrupts the
	// entry+counter mutation.
	for _, img := range entry.Images() {
		if err := j.media.Delete(ctx, img.ID); err != nil {
			j.logger.Warnw("failed to delete stored image, leaving it orphaned",
				"entry_id", entry.ID,
				"image_id", img.ID,
				"error", err,
			)
		}
	}

	if err := j.store.DeleteEntry(ctx, entry.ID); err != nil {
		return false, fmt.Errorf("%w: %v", tally.ErrStorageUnavailable, err)
	}

	if err := j.engine.Decrement(ctx, entry.Category); err != nil {
		if insErr := j.store.InsertEntry(ctx, entry); insErr != nil {
			j.logger.Errorw("failed to compensate entry after counter decrement failure",
				"entry_id", entry.ID,
				"category", entry.Category.String(),
				"error", insErr,
			)
		}
		return false, err
	}

	return true, nil
}

// List returns recent entries newest-first. A negative limit means the
// configured default; any limit is capped at the configured window so no
// read is ever unbounded.
func (j *Journal) List(ctx context.Context, limit int) ([]models.Entry, error) {
	if limit < 0 || limit > j.historyLimit {
		limit = j.historyLimit
	}
	entries, err := j.store.ListEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tally.ErrStorageUnavailable, err)
	}
	return entries, nil
}

// Reset zeroes every counter; in the destructive profile it clears the
// journal too, so both entities land on the invariant together.
func (j *Journal) Reset(ctx context.Context) error {
	if j.destructiveReset {
		if err := j.store.DeleteAllEntries(ctx); err != nil {
			return fmt.Errorf("%w: %v", tally.ErrStorageUnavailable, err)
		}
	}
	return j.engine.ResetAll(ctx)
}
