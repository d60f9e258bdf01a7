package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anelcanto/recall/internal/config"
	"github.com/anelcanto/recall/internal/container"
	"github.com/anelcanto/recall/internal/transport/http/middleware"
	"github.com/anelcanto/recall/internal/transport/http/router"
	"github.com/anelcanto/recall/pkg/apperr"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	c.Logger.Info("starting recall server",
		"version", "0.1.0",
		"collection", cfg.Qdrant.CollectionName,
		"embed_model", cfg.Ollama.Model,
	)

	// A collection created under a different embedding model or dimension
	// makes every future similarity score meaningless; refuse to serve
	// rather than silently corrupt search quality (§4.5.3).
	validateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = c.MemoryStore.ValidateModel(validateCtx)
	cancel()
	if err != nil {
		if apperr.Is(err, apperr.CodeModelMismatch) {
			c.Logger.Error("embedding model mismatch against existing collection, refusing to start", "error", err)
		} else {
			c.Logger.Error("startup model validation failed", "error", err)
		}
		os.Exit(1)
	}

	gin.SetMode(cfg.Server.Mode)

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      setupRouter(c),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		c.Logger.Info("server listening", "address", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	c.Logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		c.Logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := c.Close(); err != nil {
		c.Logger.Warn("error closing vector store connection", "error", err)
	}

	c.Logger.Info("server exited")
}

// setupRouter configures and returns the HTTP router.
func setupRouter(c *container.Container) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(c.Logger))
	r.Use(middleware.RequestID())

	if c.Config.Audit.Enabled {
		r.Use(middleware.Audit(c.AuditLogger))
	}

	if c.Config.Metrics.Enabled {
		r.Use(middleware.Metrics())
	}

	router.SetupRoutes(r, c)

	return r
}
