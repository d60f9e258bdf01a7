package router

import (
	"github.com/gin-gonic/gin"

	"github.com/anelcanto/recall/internal/container"
	"github.com/anelcanto/recall/internal/transport/http/handlers"
)

// SetupRoutes configures all application routes (§6).
func SetupRoutes(r *gin.Engine, c *container.Container) {
	r.GET("/health", handlers.NewHealthHandler(c).Handle)

	if c.Config.Metrics.Enabled {
		r.GET(c.Config.Metrics.Path, handlers.NewMetricsHandler(c).Handle)
	}

	auth := handlers.NewAuthHandler(c)
	memoryHandler := handlers.NewMemoryHandler(c)

	protected := r.Group("/")
	protected.Use(auth.BearerTokenMiddleware())
	{
		protected.POST("/memory", memoryHandler.Store)
		protected.POST("/search", memoryHandler.Search)
		protected.POST("/ingest", memoryHandler.Ingest)
		protected.GET("/memories", memoryHandler.List)
		protected.DELETE("/memory/:id", memoryHandler.Delete)
	}
}
