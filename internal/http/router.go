// Package http exposes the deck import pipeline over HTTP: upload a deck
// archive, poll progress, cancel, and read the terminal outcome.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/skelutten/studymaster-pwa-sub001/internal/audit"
)

// RouterConfig carries the dependencies of the HTTP layer.
type RouterConfig struct {
	AuditService     *audit.Service
	DefaultChunkSize int
	MaxUploadBytes   int64
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	imports := NewImportController(cfg)

	router.GET("/health", Health)

	api := router.Group("/api")
	api.POST("/imports", imports.Create)
	api.GET("/imports/:id", imports.Get)
	api.POST("/imports/:id/cancel", imports.Cancel)

	return router
}

// Health reports service liveness.
func Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
