package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"licznik.app/server/internal/middleware"
	"licznik.app/server/internal/models"
)

// snapshotPayload is the caller-independent part of the data response; only
// this part is cached, the admin flag is always computed per request.
type snapshotPayload struct {
	Counters map[string]int64 `json:"counters"`
	Entries  []models.Entry   `json:"entries"`
}

// GetData returns the current counters and the bounded recent-entries
// window.
func (h *Handler) GetData(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	isAdmin := middleware.RoleFrom(c).CanAdmin()

	if cached, ok := h.snapshot.Get(ctx); ok {
		var payload snapshotPayload
		if err := json.Unmarshal(cached, &payload); err == nil {
			c.JSON(http.StatusOK, models.DataResponse{
				OK:       true,
				Counters: payload.Counters,
				Entries:  payload.Entries,
				IsAdmin:  isAdmin,
			})
			return
		}
	}

	counters, err := h.engine.Counters(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	entries, err := h.journal.List(ctx, -1)
	if err != nil {
		h.fail(c, err)
		return
	}

	payload := snapshotPayload{
		Counters: make(map[string]int64, len(counters)),
		Entries:  entries,
	}
	for cat, count := range counters {
		payload.Counters[cat.String()] = count
	}

	if data, err := json.Marshal(payload); err == nil {
		h.snapshot.Set(ctx, data)
	}

	c.JSON(http.StatusOK, models.DataResponse{
		OK:       true,
		Counters: payload.Counters,
		Entries:  payload.Entries,
		IsAdmin:  isAdmin,
	})
}
