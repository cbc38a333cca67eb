package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"licznik.app/server/internal/models"
)

// ResetCounters zeroes every counter; in the destructive deployment profile
// it clears the journal with them. Admin only.
func (h *Handler) ResetCounters(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.journal.Reset(ctx); err != nil {
		h.fail(c, err)
		return
	}

	h.snapshot.Invalidate(ctx)
	c.JSON(http.StatusOK, models.OKResponse{OK: true})
}
