package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"licznik.app/server/internal/models"
)

// DeleteEntry removes one entry by id. Admin only; deleting an id that is
// already gone succeeds so retries from the admin UI stay simple.
func (h *Handler) DeleteEntry(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "entry id is required"})
		return
	}

	deleted, err := h.journal.Delete(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if deleted {
		h.snapshot.Invalidate(ctx)
	}

	c.JSON(http.StatusOK, models.DeleteEntryResponse{OK: true, Deleted: id})
}
