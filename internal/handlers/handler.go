package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licznik.app/server/internal/cache"
	"licznik.app/server/internal/journal"
	"licznik.app/server/internal/media"
	"licznik.app/server/internal/models"
	"licznik.app/server/internal/tally"
)

// requestTimeout bounds every storage/upstream round trip; a stuck backend
// surfaces as a 500 instead of a hung request.
const requestTimeout = 30 * time.Second

// Handler carries the wired core components into the gin routes.
type Handler struct {
	journal  *journal.Journal
	engine   *tally.Engine
	media    media.Store
	snapshot cache.Snapshot
	logger   *zap.SugaredLogger
}

// New creates the API handler.
func New(j *journal.Journal, engine *tally.Engine, mediaStore media.Store, snapshot cache.Snapshot, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		journal:  j,
		engine:   engine,
		media:    mediaStore,
		snapshot: snapshot,
		logger:   logger,
	}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// fail maps core errors onto the uniform error envelope. Validation errors
// keep their message; everything else is a generic 500 with the detail only
// in the log.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tally.ErrInvalidCategory),
		errors.Is(err, journal.ErrInvalidLocation),
		errors.Is(err, media.ErrUnsupportedImage):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		h.logError(c, err, "request failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

func (h *Handler) logError(c *gin.Context, err error, msg string, fields ...interface{}) {
	if h.logger == nil {
		return
	}
	base := []interface{}{
		"request_id", c.GetString("request_id"),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"client_ip", c.ClientIP(),
		"error", err,
	}
	h.logger.Errorw(msg, append(base, fields...)...)
}
