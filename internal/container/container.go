package container

import (
	"fmt"

	"github.com/anelcanto/recall/internal/config"
	"github.com/anelcanto/recall/internal/domain/embedding"
	"github.com/anelcanto/recall/internal/domain/memory"
	"github.com/anelcanto/recall/internal/domain/vectorstore"
	"github.com/anelcanto/recall/pkg/logger"
)

// Container holds all application dependencies, wired once at startup.
type Container struct {
	Config       *config.Config
	Logger       logger.Logger
	AuditLogger  *logger.AuditLogger
	Embedder     embedding.Client
	VectorStore  vectorstore.Store
	MemoryStore  *memory.Store
	CursorSecret []byte
}

// NewContainer creates a new dependency injection container.
func NewContainer(cfg *config.Config) (*Container, error) {
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	auditLogger := logger.NewAuditLogger(appLogger)

	embedder := embedding.New(embedding.Config{
		BaseURL:      cfg.Ollama.BaseURL,
		Model:        cfg.Ollama.Model,
		PreferedPath: cfg.Ollama.EmbedPath,
		Timeout:      cfg.Ollama.Timeout,
	}, appLogger)

	vectorStore := vectorstore.New(vectorstore.Config{
		BaseURL: cfg.QdrantURL(),
		Timeout: cfg.Ollama.Timeout,
	})

	cursorSecret, err := resolveCursorSecret(cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to establish cursor secret: %w", err)
	}

	memoryStore := memory.New(vectorStore, embedder, appLogger, memory.Config{
		CollectionName: cfg.Qdrant.CollectionName,
		Model:          cfg.Ollama.Model,
		LockTableSize:  cfg.Limits.LockTableSize,
		CacheTTL:       cfg.Limits.CollectionCacheTTL,
		CursorSecret:   cursorSecret,
	})

	return &Container{
		Config:       cfg,
		Logger:       appLogger,
		AuditLogger:  auditLogger,
		Embedder:     embedder,
		VectorStore:  vectorStore,
		MemoryStore:  memoryStore,
		CursorSecret: cursorSecret,
	}, nil
}

// resolveCursorSecret derives the HMAC key that signs pagination cursors
// (§4.3): the configured auth token when one is set, so cursors survive a
// restart without extra state, or a process-lifetime random secret
// otherwise.
func resolveCursorSecret(cfg *config.Config, log logger.Logger) ([]byte, error) {
	if cfg.Auth.Token != "" {
		return []byte(cfg.Auth.Token), nil
	}
	secret, err := memory.NewRandomCursorSecret()
	if err != nil {
		return nil, err
	}
	log.Warn("no API_AUTH_TOKEN configured, pagination cursors will not survive a restart")
	return secret, nil
}

// Close releases resources held by the container.
func (c *Container) Close() error {
	return c.VectorStore.Close()
}
