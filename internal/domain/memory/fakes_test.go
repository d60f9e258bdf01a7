package memory

import (
	"context"
	"sync"
	"time"

	"github.com/anelcanto/recall/internal/domain/vectorstore"
)

// fakeEmbedder is a hand-written stand-in for embedding.Client: it returns a
// deterministic, fixed-dimension vector per call and lets tests inject
// failures.
type fakeEmbedder struct {
	mu        sync.Mutex
	dim       int
	calls     int
	failEmbed error
	failProbe error
	available *bool
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failEmbed != nil {
		return nil, f.failEmbed
	}
	vec := make([]float64, f.dim)
	for i := range vec {
		vec[i] = float64(len(text)+i) / 10
	}
	return vec, nil
}

func (f *fakeEmbedder) ProbeDimension(ctx context.Context) (int, error) {
	if f.failProbe != nil {
		return 0, f.failProbe
	}
	return f.dim, nil
}

func (f *fakeEmbedder) IsAvailable(ctx context.Context, timeout time.Duration) *bool {
	return f.available
}

// fakeVectorStore is a hand-written in-memory stand-in for vectorstore.Store.
type fakeVectorStore struct {
	mu sync.Mutex

	collections map[string]bool
	points      map[string]map[string]vectorstore.Point // collection -> id -> point

	failCollectionExists error
	failUpsert           error
	failRetrieve         error
	failSearch           error
	failScroll           error
	failDelete           error
	retrieveNotFound     bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		collections: make(map[string]bool),
		points:      make(map[string]map[string]vectorstore.Point),
	}
}

func (f *fakeVectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCollectionExists != nil {
		return false, f.failCollectionExists
	}
	return f.collections[name], nil
}

func (f *fakeVectorStore) CreateCollection(ctx context.Context, name string, dim int, distance string, onDiskPayload bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[name] = true
	f.points[name] = make(map[string]vectorstore.Point)
	return nil
}

func (f *fakeVectorStore) CreatePayloadIndex(ctx context.Context, name, field, schema string) error {
	return nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert != nil {
		return f.failUpsert
	}
	if f.points[name] == nil {
		f.points[name] = make(map[string]vectorstore.Point)
	}
	for _, p := range points {
		f.points[name][p.ID] = p
	}
	return nil
}

func (f *fakeVectorStore) Retrieve(ctx context.Context, name string, ids []string, withPayload bool) ([]vectorstore.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRetrieve != nil {
		return nil, f.failRetrieve
	}
	var out []vectorstore.Point
	for _, id := range ids {
		if p, ok := f.points[name][id]; ok {
			out = append(out, p)
		}
	}
	if len(out) == 0 && f.retrieveNotFound {
		return nil, vectorstore.ErrNotFound
	}
	return out, nil
}

func (f *fakeVectorStore) Search(ctx context.Context, name string, vector []float64, limit int, filter *vectorstore.Filter, withPayload bool) ([]vectorstore.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSearch != nil {
		return nil, f.failSearch
	}
	var out []vectorstore.ScoredPoint
	for _, p := range f.points[name] {
		if matchesFilter(filter, p.Payload) {
			out = append(out, vectorstore.ScoredPoint{Point: p, Score: 0.9})
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeVectorStore) Scroll(ctx context.Context, name string, filter *vectorstore.Filter, limit int, offset interface{}, orderBy *vectorstore.OrderBy, withPayload bool) ([]vectorstore.Point, interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failScroll != nil {
		return nil, nil, f.failScroll
	}
	var out []vectorstore.Point
	for _, p := range f.points[name] {
		if matchesFilter(filter, p.Payload) {
			out = append(out, p)
		}
	}
	return out, nil, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, name string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	for _, id := range ids {
		delete(f.points[name], id)
	}
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

func matchesFilter(filter *vectorstore.Filter, payload map[string]interface{}) bool {
	if filter == nil {
		return true
	}
	for _, cond := range filter.Must {
		if cond.NotMatch != nil {
			if payload[cond.Field] == cond.NotMatch {
				return false
			}
		}
		if cond.Match != nil {
			if payload[cond.Field] != cond.Match {
				return false
			}
		}
	}
	return true
}
