package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"licznik.app/server/internal/journal"
	"licznik.app/server/internal/media"
	"licznik.app/server/internal/models"
)

const (
	// maxImageBytes caps a single uploaded image before decoding.
	maxImageBytes = 10 << 20

	// galleryUploadWorkers bounds how many gallery images one request
	// uploads in parallel.
	galleryUploadWorkers = 4
)

// CreateEntry accepts a multipart submission: category plus optional title,
// text, location, primary image and gallery images. Validation runs before
// any upload; uploads complete before anything is persisted.
func (h *Handler) CreateEntry(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	params := journal.CreateParams{
		Category: c.PostForm("category"),
		Title:    c.PostForm("title"),
		Text:     c.PostForm("text"),
	}

	if _, err := h.engine.ParseCategory(params.Category); err != nil {
		h.fail(c, err)
		return
	}

	lat, lng, err := parseLocation(c.PostForm("lat"), c.PostForm("lng"))
	if err != nil {
		h.fail(c, err)
		return
	}
	params.Latitude, params.Longitude = lat, lng

	primary, gallery, err := h.uploadImages(ctx, c)
	if err != nil {
		h.fail(c, err)
		return
	}
	params.Image = primary
	params.Gallery = gallery

	entry, err := h.journal.Create(ctx, params)
	if err != nil {
		// The entry never existed, so its uploads are orphans. Clean
		// them up on a best-effort basis.
		h.cleanupUploads(ctx, primary, gallery)
		h.fail(c, err)
		return
	}

	h.snapshot.Invalidate(ctx)
	c.JSON(http.StatusCreated, models.CreateEntryResponse{OK: true, Entry: *entry})
}

// parseLocation enforces the both-or-neither coordinate rule.
func parseLocation(latRaw, lngRaw string) (*float64, *float64, error) {
	if latRaw == "" && lngRaw == "" {
		return nil, nil, nil
	}
	if latRaw == "" || lngRaw == "" {
		return nil, nil, journal.ErrInvalidLocation
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad latitude %q", journal.ErrInvalidLocation, latRaw)
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad longitude %q", journal.ErrInvalidLocation, lngRaw)
	}
	return &lat, &lng, nil
}

// uploadImages normalizes and stores the primary image and the gallery. A
// failure anywhere removes whatever was already uploaded so no stored object
// ends up referenced by nothing.
func (h *Handler) uploadImages(ctx context.Context, c *gin.Context) (*models.ImageRef, []models.ImageRef, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		// Not a multipart request: a plain form post without images.
		return nil, nil, nil
	}

	var primary *models.ImageRef
	if files := form.File["image"]; len(files) > 0 {
		ref, err := h.uploadOne(ctx, files[0])
		if err != nil {
			return nil, nil, err
		}
		primary = &ref
	}

	files := form.File["gallery"]
	if len(files) == 0 {
		return primary, nil, nil
	}

	gallery := make([]models.ImageRef, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(galleryUploadWorkers)
	for i, fh := range files {
		g.Go(func() error {
			ref, err := h.uploadOne(gctx, fh)
			if err != nil {
				return err
			}
			gallery[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		uploaded := make([]models.ImageRef, 0, len(gallery))
		for _, ref := range gallery {
			if ref.ID != "" {
				uploaded = append(uploaded, ref)
			}
		}
		h.cleanupUploads(ctx, primary, uploaded)
		return nil, nil, err
	}

	return primary, gallery, nil
}

func (h *Handler) uploadOne(ctx context.Context, fh *multipart.FileHeader) (models.ImageRef, error) {
	file, err := fh.Open()
	if err != nil {
		return models.ImageRef{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return models.ImageRef{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	if len(data) > maxImageBytes {
		return models.ImageRef{}, fmt.Errorf("%w: %s exceeds %d bytes", media.ErrUnsupportedImage, fh.Filename, maxImageBytes)
	}

	normalized, contentType, err := media.Normalize(data)
	if err != nil {
		return models.ImageRef{}, err
	}
	return h.media.Upload(ctx, normalized, contentType)
}

func (h *Handler) cleanupUploads(ctx context.Context, primary *models.ImageRef, gallery []models.ImageRef) {
	refs := gallery
	if primary != nil {
		refs = append([]models.ImageRef{*primary}, gallery...)
	}
	for _, ref := range refs {
		if err := h.media.Delete(ctx, ref.ID); err != nil {
			h.logger.Warnw("failed to clean up orphaned upload", "image_id", ref.ID, "error", err)
		}
	}
}
