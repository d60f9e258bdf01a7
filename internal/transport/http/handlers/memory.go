package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anelcanto/recall/internal/container"
	"github.com/anelcanto/recall/internal/domain/memory"
	"github.com/anelcanto/recall/pkg/apperr"
)

// MemoryHandler implements the HTTP façade over the memory store (§6).
type MemoryHandler struct {
	container *container.Container
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(c *container.Container) *MemoryHandler {
	return &MemoryHandler{container: c}
}

type storeRequest struct {
	Text       string   `json:"text"`
	Tags       []string `json:"tags"`
	Source     string   `json:"source"`
	DedupeKey  string   `json:"dedupe_key"`
	ExternalID string   `json:"external_id"`
}

type storeResponse struct {
	ID         string `json:"id"`
	IDStrategy string `json:"id_strategy"`
}

// validate checks a storeRequest against the limits in config (§6).
func (h *MemoryHandler) validate(req storeRequest) []string {
	var problems []string
	limits := h.container.Config.Limits

	if req.Text == "" {
		problems = append(problems, "text must not be empty")
	}
	if len(req.Text) > limits.MaxTextLength {
		problems = append(problems, "text exceeds maximum length")
	}
	if len(req.Tags) > limits.MaxTags {
		problems = append(problems, "too many tags")
	}
	for _, tag := range req.Tags {
		if len(tag) > limits.MaxTagLength {
			problems = append(problems, "tag exceeds maximum length")
			break
		}
	}
	if len(req.Source) > limits.MaxSourceLength {
		problems = append(problems, "source exceeds maximum length")
	}
	return problems
}

// Store handles POST /memory.
func (h *MemoryHandler) Store(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondValidation(c, []string{"request body is not valid JSON"})
		return
	}
	if problems := h.validate(req); len(problems) > 0 {
		h.respondValidation(c, problems)
		return
	}

	res, err := h.container.MemoryStore.Upsert(ctx, memory.CreateInput{
		Text:       req.Text,
		Tags:       req.Tags,
		Source:     req.Source,
		DedupeKey:  req.DedupeKey,
		ExternalID: req.ExternalID,
	})
	trackEmbeddingCall()
	if err != nil {
		trackOperation(start, "store", "error")
		h.respondError(c, err)
		return
	}
	trackOperation(start, "store", "ok")
	trackUpsertOutcome(res.IDStrategy)

	httpStatus := http.StatusOK
	if res.IDStrategy == memory.StrategyRandom {
		httpStatus = http.StatusCreated
	}
	c.JSON(httpStatus, storeResponse{ID: res.ID, IDStrategy: res.IDStrategy})
}

type ingestRequest struct {
	Items []storeRequest `json:"items"`
}

type ingestError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Ingest handles POST /ingest: a batch write where a per-item failure never
// aborts the rest of the batch (§6, §7 ingest propagation policy).
func (h *MemoryHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondValidation(c, []string{"request body is not valid JSON"})
		return
	}
	if len(req.Items) == 0 {
		h.respondValidation(c, []string{"items must not be empty"})
		return
	}
	if len(req.Items) > h.container.Config.Limits.MaxBatchSize {
		h.respondValidation(c, []string{"batch exceeds maximum size"})
		return
	}

	var succeeded, failed int
	var errs []ingestError
	for i, item := range req.Items {
		start := time.Now()
		if problems := h.validate(item); len(problems) > 0 {
			failed++
			errs = append(errs, ingestError{Index: i, Error: strJoin(problems)})
			trackOperation(start, "ingest_item", "error")
			continue
		}

		res, err := h.container.MemoryStore.Upsert(ctx, memory.CreateInput{
			Text:       item.Text,
			Tags:       item.Tags,
			Source:     item.Source,
			DedupeKey:  item.DedupeKey,
			ExternalID: item.ExternalID,
		})
		trackEmbeddingCall()
		if err != nil {
			failed++
			errs = append(errs, ingestError{Index: i, Error: err.Error()})
			trackOperation(start, "ingest_item", "error")
			continue
		}
		succeeded++
		trackOperation(start, "ingest_item", "ok")
		trackUpsertOutcome(res.IDStrategy)
	}

	c.JSON(http.StatusOK, gin.H{
		"succeeded": succeeded,
		"failed":    failed,
		"errors":    errs,
	})
}

type searchRequest struct {
	Query       string `json:"query"`
	TopK        *int   `json:"top_k"`
	IncludeText bool   `json:"include_text"`
}

const defaultTopK = 5

type searchResultItem struct {
	ID        string   `json:"id"`
	Score     float64  `json:"score"`
	Tags      []string `json:"tags,omitempty"`
	Source    string   `json:"source,omitempty"`
	WrittenAt string   `json:"written_at"`
	Text      string   `json:"text,omitempty"`
}

// Search handles POST /search.
func (h *MemoryHandler) Search(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondValidation(c, []string{"request body is not valid JSON"})
		return
	}
	if req.Query == "" {
		h.respondValidation(c, []string{"query must not be empty"})
		return
	}
	topK := defaultTopK
	if req.TopK != nil {
		if *req.TopK < 1 || *req.TopK > 50 {
			h.respondValidation(c, []string{"top_k must be between 1 and 50"})
			return
		}
		topK = *req.TopK
	}

	records, err := h.container.MemoryStore.Search(ctx, req.Query, topK, req.IncludeText)
	if err == nil {
		trackEmbeddingCall()
	}
	if err != nil {
		trackOperation(start, "search", "error")
		h.respondError(c, err)
		return
	}
	trackOperation(start, "search", "ok")
	trackSearchResults(len(records))

	results := make([]searchResultItem, 0, len(records))
	for _, r := range records {
		results = append(results, searchResultItem{
			ID:        r.ID,
			Score:     r.Score,
			Tags:      r.Tags,
			Source:    r.Source,
			WrittenAt: r.WrittenAt,
			Text:      r.Text,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

type listMemoryItem struct {
	ID             string   `json:"id"`
	Tags           []string `json:"tags,omitempty"`
	Source         string   `json:"source,omitempty"`
	Text           string   `json:"text"`
	WrittenAt      string   `json:"written_at"`
	FirstWrittenAt string   `json:"first_written_at"`
}

// List handles GET /memories.
func (h *MemoryHandler) List(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			h.respondValidation(c, []string{"limit must be an integer between 1 and 100"})
			return
		}
		limit = n
	}
	cursor := c.Query("cursor")

	records, next, err := h.container.MemoryStore.List(ctx, limit, cursor)
	if err != nil {
		trackOperation(start, "list", "error")
		h.respondError(c, err)
		return
	}
	trackOperation(start, "list", "ok")

	items := make([]listMemoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, listMemoryItem{
			ID:             r.ID,
			Tags:           r.Tags,
			Source:         r.Source,
			Text:           r.Text,
			WrittenAt:      r.WrittenAt,
			FirstWrittenAt: r.FirstWrittenAt,
		})
	}

	resp := gin.H{"memories": items}
	if next != "" {
		resp["next_cursor"] = next
	} else {
		resp["next_cursor"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /memory/{id}.
func (h *MemoryHandler) Delete(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := h.container.MemoryStore.Delete(ctx, id); err != nil {
		trackOperation(start, "delete", "error")
		h.respondError(c, err)
		return
	}
	trackOperation(start, "delete", "ok")

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *MemoryHandler) respondValidation(c *gin.Context, problems []string) {
	appErr := apperr.New(apperr.CodeValidation, "request failed validation")
	c.JSON(appErr.HTTPStatus, gin.H{
		"error":  string(appErr.Code),
		"detail": problems,
	})
}

func (h *MemoryHandler) respondError(c *gin.Context, err error) {
	appErr, ok := err.(*apperr.AppError)
	if !ok {
		h.container.Logger.Error("unhandled error in memory handler", "error", err)
		appErr = apperr.Wrap(apperr.CodeInternal, "internal error", err)
	}
	c.JSON(appErr.HTTPStatus, gin.H{
		"error":  string(appErr.Code),
		"detail": appErr.Message,
	})
}

func strJoin(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += "; "
		}
		out += s
	}
	return out
}
