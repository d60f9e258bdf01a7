package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anelcanto/recall/internal/config"
	"github.com/anelcanto/recall/internal/container"
	"github.com/anelcanto/recall/internal/domain/memory"
	"github.com/anelcanto/recall/internal/domain/vectorstore"
	"github.com/anelcanto/recall/pkg/logger"
)

// fakeEmbedder and fakeVectorStore are local, minimal stand-ins for the
// embedding.Client and vectorstore.Store interfaces, kept separate from the
// ones in internal/domain/memory so this package's tests don't reach across
// package boundaries into another package's _test.go file.
type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return make([]float64, f.dim), nil
}
func (f *fakeEmbedder) ProbeDimension(ctx context.Context) (int, error) { return f.dim, nil }
func (f *fakeEmbedder) IsAvailable(ctx context.Context, timeout time.Duration) *bool {
	v := true
	return &v
}

type fakeVectorStore struct {
	collections map[string]bool
	points      map[string]map[string]vectorstore.Point
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{collections: map[string]bool{}, points: map[string]map[string]vectorstore.Point{}}
}

func (f *fakeVectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return f.collections[name], nil
}
func (f *fakeVectorStore) CreateCollection(ctx context.Context, name string, dim int, distance string, onDiskPayload bool) error {
	f.collections[name] = true
	f.points[name] = map[string]vectorstore.Point{}
	return nil
}
func (f *fakeVectorStore) CreatePayloadIndex(ctx context.Context, name, field, schema string) error {
	return nil
}
func (f *fakeVectorStore) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	for _, p := range points {
		f.points[name][p.ID] = p
	}
	return nil
}
func (f *fakeVectorStore) Retrieve(ctx context.Context, name string, ids []string, withPayload bool) ([]vectorstore.Point, error) {
	var out []vectorstore.Point
	for _, id := range ids {
		if p, ok := f.points[name][id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
func (f *fakeVectorStore) Search(ctx context.Context, name string, vector []float64, limit int, filter *vectorstore.Filter, withPayload bool) ([]vectorstore.ScoredPoint, error) {
	var out []vectorstore.ScoredPoint
	for _, p := range f.points[name] {
		if meta, _ := p.Payload["_meta"].(bool); meta {
			continue
		}
		out = append(out, vectorstore.ScoredPoint{Point: p, Score: 0.5})
	}
	return out, nil
}
func (f *fakeVectorStore) Scroll(ctx context.Context, name string, filter *vectorstore.Filter, limit int, offset interface{}, orderBy *vectorstore.OrderBy, withPayload bool) ([]vectorstore.Point, interface{}, error) {
	var out []vectorstore.Point
	for _, p := range f.points[name] {
		if meta, _ := p.Payload["_meta"].(bool); meta {
			continue
		}
		out = append(out, p)
	}
	return out, nil, nil
}
func (f *fakeVectorStore) Delete(ctx context.Context, name string, ids []string) error {
	for _, id := range ids {
		delete(f.points[name], id)
	}
	return nil
}
func (f *fakeVectorStore) Close() error { return nil }

func testContainer(t *testing.T) (*container.Container, *fakeVectorStore) {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	cfg := &config.Config{
		Qdrant:  config.QdrantConfig{CollectionName: "memories"},
		Limits:  config.LimitsConfig{MaxTextLength: 8000, MaxBatchSize: 100, MaxTags: 20, MaxTagLength: 100, MaxSourceLength: 200, HealthCheckTimeout: 5 * time.Second},
		Metrics: config.MetricsConfig{Enabled: false},
		Audit:   config.AuditConfig{Enabled: false},
	}

	vs := newFakeVectorStore()
	emb := &fakeEmbedder{dim: 4}
	ms := memory.New(vs, emb, log, memory.Config{CollectionName: "memories", Model: "m", CursorSecret: []byte("secret")})

	return &container.Container{
		Config:      cfg,
		Logger:      log,
		VectorStore: vs,
		Embedder:    emb,
		MemoryStore: ms,
	}, vs
}

func newTestRouter(c *container.Container) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewMemoryHandler(c)
	r.POST("/memory", h.Store)
	r.POST("/search", h.Search)
	r.POST("/ingest", h.Ingest)
	r.GET("/memories", h.List)
	r.DELETE("/memory/:id", h.Delete)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStore_Success(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	w := doJSON(r, http.MethodPost, "/memory", storeRequest{Text: "hello"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp storeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, memory.StrategyRandom, resp.IDStrategy)
}

func TestStore_DedupeOverwriteReturnsOK(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	w1 := doJSON(r, http.MethodPost, "/memory", storeRequest{Text: "first", DedupeKey: "k1"})
	require.Equal(t, http.StatusCreated, w1.Code)

	w2 := doJSON(r, http.MethodPost, "/memory", storeRequest{Text: "second", DedupeKey: "k1"})
	require.Equal(t, http.StatusOK, w2.Code)

	var resp storeResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Equal(t, memory.StrategyDeduped, resp.IDStrategy)
}

func TestStore_RejectsEmptyText(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	w := doJSON(r, http.MethodPost, "/memory", storeRequest{Text: ""})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSearch_ReturnsStoredMemory(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	doJSON(r, http.MethodPost, "/memory", storeRequest{Text: "hello world"})

	topK := 5
	w := doJSON(r, http.MethodPost, "/search", searchRequest{Query: "hello", TopK: &topK, IncludeText: true})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results []searchResultItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "hello world", body.Results[0].Text)
}

func TestSearch_RejectsTopKTooLarge(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	tooLarge := 500
	w := doJSON(r, http.MethodPost, "/search", searchRequest{Query: "q", TopK: &tooLarge})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSearch_RejectsExplicitZeroTopK(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	zero := 0
	w := doJSON(r, http.MethodPost, "/search", searchRequest{Query: "q", TopK: &zero})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSearch_DefaultsTopKWhenAbsent(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	doJSON(r, http.MethodPost, "/memory", storeRequest{Text: "hello world"})

	w := doJSON(r, http.MethodPost, "/search", searchRequest{Query: "hello"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestList_ReturnsStoredMemories(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	doJSON(r, http.MethodPost, "/memory", storeRequest{Text: "a"})
	doJSON(r, http.MethodPost, "/memory", storeRequest{Text: "b"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/memories?limit=10", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Memories []listMemoryItem `json:"memories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Memories, 2)
}

func TestDelete_MissingMemoryIsNotFound(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/memory/does-not-exist", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete_RemovesStoredMemory(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	w := doJSON(r, http.MethodPost, "/memory", storeRequest{Text: "to be deleted"})
	var stored storeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))

	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/memory/"+stored.ID, nil)
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &body))
	assert.Equal(t, "deleted", body.Status)
}

func TestIngest_IsolatesPerItemFailures(t *testing.T) {
	c, _ := testContainer(t)
	r := newTestRouter(c)

	w := doJSON(r, http.MethodPost, "/ingest", ingestRequest{Items: []storeRequest{
		{Text: "good one"},
		{Text: ""}, // invalid, must not abort the batch
		{Text: "another good one"},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Succeeded int           `json:"succeeded"`
		Failed    int           `json:"failed"`
		Errors    []ingestError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Succeeded)
	assert.Equal(t, 1, body.Failed)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, 1, body.Errors[0].Index)
	assert.NotEmpty(t, body.Errors[0].Error)
}
