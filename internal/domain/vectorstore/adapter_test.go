package vectorstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/memories/exists", r.URL.Path)
		w.Write([]byte(`{"result":{"exists":true},"status":"ok"}`))
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL})
	exists, err := s.CollectionExists(context.Background(), "memories")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCollectionExists_404IsFalseNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL})
	exists, err := s.CollectionExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpsertAndSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/memories/points":
			w.Write([]byte(`{"result":{},"status":"ok"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/collections/memories/points/search":
			w.Write([]byte(`{"result":[{"id":"abc","score":0.9,"payload":{"text":"fox"}}]}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL})
	err := s.Upsert(context.Background(), "memories", []Point{{ID: "abc", Vector: []float64{0.1, 0.2}}})
	require.NoError(t, err)

	hits, err := s.Search(context.Background(), "memories", []float64{0.1, 0.2}, 5, nil, true)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "abc", hits[0].ID)
	assert.Equal(t, 0.9, hits[0].Score)
	assert.Equal(t, "fox", hits[0].Payload["text"])
}

func TestRetrieve_NotFoundPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL})
	_, err := s.Retrieve(context.Background(), "memories", []string{"x"}, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScroll_ReturnsNextOffset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"points":[{"id":"1","payload":{}}],"next_page_offset":"2"}}`))
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL})
	points, next, err := s.Scroll(context.Background(), "memories", nil, 1, nil, nil, true)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2", next)
}
