// Package media stores entry photos with an external object store. Upload
// must complete before any journal or counter write; deletes are best-effort
// cleanup and never block entry deletion.
package media

import (
	"context"
	"errors"

	"licznik.app/server/internal/models"
)

// ErrNotConfigured is returned by Upload when the deployment has no media
// bucket. Entries without images are unaffected.
var ErrNotConfigured = errors.New("media store not configured")

// Store is the external image-hosting collaborator.
type Store interface {
	// Upload stores one image and returns its public URL plus the
	// identifier needed to delete it later.
	Upload(ctx context.Context, data []byte, contentType string) (models.ImageRef, error)

	// Delete removes a stored image by its identifier. Deleting an
	// already-gone object is not an error.
	Delete(ctx context.Context, id string) error
}

// Disabled is the Store used when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, data []byte, contentType string) (models.ImageRef, error) {
	return models.ImageRef{}, ErrNotConfigured
}

func (Disabled) Delete(ctx context.Context, id string) error { return nil }
