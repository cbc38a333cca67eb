package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licznik.app/server/internal/middleware"
)

// NewRouter wires the middleware stack and the API routes. The static web
// client is served elsewhere, so CORS stays permissive.
func NewRouter(h *Handler, userCode, adminCode string, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Access-Code, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := router.Group("/api")
	api.Use(middleware.AccessGate(userCode, adminCode))
	{
		api.GET("/data", h.GetData)
		api.POST("/entries", h.CreateEntry)

		admin := api.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.DELETE("/entries/:id", h.DeleteEntry)
			admin.POST("/reset", h.ResetCounters)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
