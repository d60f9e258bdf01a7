// Package embedding adapts a remote text-embedding HTTP endpoint (an
// Ollama-compatible server by default) into the fixed capability the memory
// store needs: turn text into a vector, tolerating either of two known
// request-path conventions.
package embedding

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/anelcanto/recall/pkg/apperr"
	"github.com/anelcanto/recall/pkg/logger"
)

// fallbackPath is tried if the configured preferred path fails. It is a
// package constant, not configuration, because it exists purely to smooth
// over the one known API-shape split between Ollama versions.
const fallbackPath = "/api/embeddings"

// Config configures the embedding client.
type Config struct {
	BaseURL      string
	Model        string
	PreferedPath string
	Timeout      time.Duration
}

// Client is the embedding capability the memory store depends on. A fake
// implementation backs tests; *httpClient backs production.
type Client interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	ProbeDimension(ctx context.Context) (int, error)
	IsAvailable(ctx context.Context, timeout time.Duration) *bool
}

type httpClient struct {
	cfg    Config
	http   *http.Client
	logger logger.Logger

	mu          sync.Mutex
	workingPath string // "" until the first successful embed pins it
	dimension   int    // 0 until probed
}

// New creates an embedding client bound to a single remote endpoint. One
// instance is shared across the process for its lifetime.
func New(cfg Config, log logger.Logger) Client {
	if cfg.PreferedPath == "" {
		cfg.PreferedPath = "/api/embed"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &httpClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

// Embed turns text into a vector. Once some path has succeeded it is pinned
// for the remainder of the process — later failures on that path are
// reported as-is, never silently retried on the other path (§4.1: "no
// re-detection on later failures").
func (c *httpClient) Embed(ctx context.Context, text string) ([]float64, error) {
	c.mu.Lock()
	pinned := c.workingPath
	c.mu.Unlock()

	if pinned != "" {
		vec, err := c.tryPath(ctx, pinned, text)
		if err != nil {
			return nil, err
		}
		c.rememberDimension(len(vec))
		return vec, nil
	}

	for _, path := range []string{c.cfg.PreferedPath, fallbackPath} {
		vec, err := c.tryPath(ctx, path, text)
		if err != nil {
			if path == fallbackPath {
				return nil, err
			}
			continue
		}
		c.mu.Lock()
		if c.workingPath == "" {
			c.workingPath = path
		}
		c.mu.Unlock()
		c.logger.Info("embedding path pinned", "path", path)
		c.rememberDimension(len(vec))
		return vec, nil
	}

	return nil, apperr.New(apperr.CodeEmbeddingUnavailable, "no known embedding path succeeded")
}

func (c *httpClient) rememberDimension(dim int) {
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = dim
	}
	c.mu.Unlock()
}

// tryPath makes a single request to one path, returning EmbeddingUnavailable
// on any transport error, non-2xx status, or unrecognised response shape.
func (c *httpClient) tryPath(ctx context.Context, path, text string) ([]float64, error) {
	reqBody := map[string]interface{}{
		"model": c.cfg.Model,
		"input": text,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingUnavailable, "failed to encode embedding request", err)
	}

	url := c.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbeddingUnavailable, "failed to build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrapf(apperr.CodeEmbeddingUnavailable, err, "embedding request to %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Newf(apperr.CodeEmbeddingUnavailable, "embedding endpoint %s returned status %d", path, resp.StatusCode)
	}

	var shape struct {
		Embeddings [][]float64 `json:"embeddings"`
		Embedding  []float64   `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&shape); err != nil {
		return nil, apperr.Wrapf(apperr.CodeEmbeddingUnavailable, err, "failed to decode response from %s", path)
	}

	if len(shape.Embeddings) > 0 {
		return shape.Embeddings[0], nil
	}
	if len(shape.Embedding) > 0 {
		return shape.Embedding, nil
	}
	return nil, apperr.Newf(apperr.CodeEmbeddingUnavailable, "response from %s had no recognised embedding field", path)
}

// ProbeDimension embeds a fixed probe string once and caches the resulting
// vector length. Called during collection lifecycle (§4.5.3).
func (c *httpClient) ProbeDimension(ctx context.Context) (int, error) {
	c.mu.Lock()
	dim := c.dimension
	c.mu.Unlock()
	if dim > 0 {
		return dim, nil
	}

	vec, err := c.Embed(ctx, "probe")
	if err != nil {
		return 0, err
	}
	return len(vec), nil
}

// IsAvailable is a bounded liveness probe for health checks. It must not
// raise: nil means the probe timed out (unknown), otherwise it reports a
// definite true/false.
func (c *httpClient) IsAvailable(ctx context.Context, timeout time.Duration) *bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		ok bool
	}
	done := make(chan result, 1)

	go func() {
		_, err := c.Embed(ctx, "ping")
		done <- result{ok: err == nil}
	}()

	select {
	case r := <-done:
		return &r.ok
	case <-ctx.Done():
		return nil
	}
}
