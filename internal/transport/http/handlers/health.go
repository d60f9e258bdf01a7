package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/anelcanto/recall/internal/container"
)

// HealthHandler reports liveness of the service and its two external
// dependencies, probed concurrently (§6, scenario 5).
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(c *container.Container) *HealthHandler {
	return &HealthHandler{container: c}
}

// Handle processes health check requests.
func (h *HealthHandler) Handle(c *gin.Context) {
	timeout := h.container.Config.Limits.HealthCheckTimeout
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	var wg sync.WaitGroup
	var qdrantStatus, ollamaStatus *bool

	wg.Add(2)
	go func() {
		defer wg.Done()
		// Existence or absence both prove the engine is reachable; only a
		// transport error means it's down, and a deadline means unknown.
		_, err := h.container.VectorStore.CollectionExists(ctx, h.container.Config.Qdrant.CollectionName)
		switch {
		case err == nil:
			qdrantStatus = boolPtr(true)
		case errors.Is(err, context.DeadlineExceeded):
			qdrantStatus = nil
		default:
			qdrantStatus = boolPtr(false)
		}
	}()
	go func() {
		defer wg.Done()
		ollamaStatus = h.container.Embedder.IsAvailable(ctx, timeout)
	}()
	wg.Wait()

	status := "unavailable"
	switch {
	case isUp(qdrantStatus) && isUp(ollamaStatus):
		status = "ok"
	case isUp(qdrantStatus):
		status = "degraded"
	}

	httpStatus := http.StatusOK
	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"qdrant": qdrantStatus,
		"ollama": ollamaStatus,
	})
}

func boolPtr(b bool) *bool { return &b }

func isUp(status *bool) bool { return status != nil && *status }
