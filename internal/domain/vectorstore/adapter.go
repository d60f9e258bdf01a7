// Package vectorstore is a thin capability surface over an external vector
// database (Qdrant by default, reached over its REST API). The memory store
// depends only on the Store interface below, never on Qdrant request/response
// shapes directly, so a fake can stand in for it in tests.
package vectorstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Distance functions supported when creating a collection.
const (
	DistanceCosine = "Cosine"
)

// Payload index schemas supported by CreatePayloadIndex.
const (
	SchemaKeyword  = "keyword"
	SchemaDatetime = "datetime"
)

// ErrNotFound is returned by Retrieve/Search/Scroll/Delete when the engine
// reports the collection or point does not exist. Callers distinguish this
// from a transport error to implement the "treat as empty" read-path policy.
var ErrNotFound = fmt.Errorf("vectorstore: not found")

// Point is a single stored vector plus its payload.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float64              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ScoredPoint is a Point returned from a similarity search, with its score.
type ScoredPoint struct {
	Point
	Score float64
}

// Filter restricts which points a search/scroll/delete call considers.
// Conditions are ANDed together (Qdrant's "must" clause).
type Filter struct {
	Must []Condition
}

// Condition is one field-level filter predicate.
type Condition struct {
	Field string
	// Exactly one of Match/NotMatch should be set.
	Match    interface{}
	NotMatch interface{}
}

// OrderBy requests points ordered by a payload field.
type OrderBy struct {
	Field string
	Desc  bool
}

// Store is the capability contract the memory store depends on (spec §4.2).
type Store interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dim int, distance string, onDiskPayload bool) error
	CreatePayloadIndex(ctx context.Context, name, field, schema string) error
	Upsert(ctx context.Context, name string, points []Point) error
	Retrieve(ctx context.Context, name string, ids []string, withPayload bool) ([]Point, error)
	Search(ctx context.Context, name string, vector []float64, limit int, filter *Filter, withPayload bool) ([]ScoredPoint, error)
	Scroll(ctx context.Context, name string, filter *Filter, limit int, offset interface{}, orderBy *OrderBy, withPayload bool) ([]Point, interface{}, error)
	Delete(ctx context.Context, name string, ids []string) error
	Close() error
}

// Config configures the REST client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type restStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New builds a Store backed by Qdrant's REST API.
func New(cfg Config) Store {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &restStore{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *restStore) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *restStore) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("vectorstore: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: build request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: transport error calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("vectorstore: %s returned status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("vectorstore: decode response from %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *restStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var result struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	_, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s/exists", name), nil, &result)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return result.Result.Exists, nil
}

func (s *restStore) CreateCollection(ctx context.Context, name string, dim int, distance string, onDiskPayload bool) error {
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dim,
			"distance": distance,
		},
		"on_disk_payload": onDiskPayload,
	}
	_, err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", name), body, nil)
	return err
}

func (s *restStore) CreatePayloadIndex(ctx context.Context, name, field, schema string) error {
	fieldSchema := "keyword"
	if schema == SchemaDatetime {
		fieldSchema = "datetime"
	}
	body := map[string]interface{}{
		"field_name":   field,
		"field_schema": fieldSchema,
	}
	_, err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/index", name), body, nil)
	return err
}

func (s *restStore) Upsert(ctx context.Context, name string, points []Point) error {
	type wirePoint struct {
		ID      string                 `json:"id"`
		Vector  []float64              `json:"vector"`
		Payload map[string]interface{} `json:"payload,omitempty"`
	}
	wire := make([]wirePoint, 0, len(points))
	for _, p := range points {
		wire = append(wire, wirePoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}
	body := map[string]interface{}{"points": wire}
	_, err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", name), body, nil)
	return err
}

func (s *restStore) Retrieve(ctx context.Context, name string, ids []string, withPayload bool) ([]Point, error) {
	body := map[string]interface{}{
		"ids":          ids,
		"with_payload": withPayload,
		"with_vector":  false,
	}
	var result struct {
		Result []struct {
			ID      interface{}            `json:"id"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	_, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points", name), body, &result)
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, len(result.Result))
	for _, r := range result.Result {
		points = append(points, Point{ID: fmt.Sprintf("%v", r.ID), Payload: r.Payload})
	}
	return points, nil
}

func buildFilter(f *Filter) map[string]interface{} {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	must := make([]map[string]interface{}, 0, len(f.Must))
	for _, cond := range f.Must {
		if cond.Match != nil {
			must = append(must, map[string]interface{}{
				"key":   cond.Field,
				"match": map[string]interface{}{"value": cond.Match},
			})
		} else if cond.NotMatch != nil {
			must = append(must, map[string]interface{}{
				"key": cond.Field,
				"match": map[string]interface{}{
					"except": []interface{}{cond.NotMatch},
				},
			})
		}
	}
	return map[string]interface{}{"must": must}
}

func (s *restStore) Search(ctx context.Context, name string, vector []float64, limit int, filter *Filter, withPayload bool) ([]ScoredPoint, error) {
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": withPayload,
		"with_vector":  false,
	}
	if f := buildFilter(filter); f != nil {
		body["filter"] = f
	}

	var result struct {
		Result []struct {
			ID      interface{}            `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	_, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", name), body, &result)
	if err != nil {
		return nil, err
	}

	hits := make([]ScoredPoint, 0, len(result.Result))
	for _, r := range result.Result {
		hits = append(hits, ScoredPoint{
			Point: Point{ID: fmt.Sprintf("%v", r.ID), Payload: r.Payload},
			Score: r.Score,
		})
	}
	return hits, nil
}

func (s *restStore) Scroll(ctx context.Context, name string, filter *Filter, limit int, offset interface{}, orderBy *OrderBy, withPayload bool) ([]Point, interface{}, error) {
	body := map[string]interface{}{
		"limit":        limit,
		"with_payload": withPayload,
		"with_vector":  false,
	}
	if f := buildFilter(filter); f != nil {
		body["filter"] = f
	}
	if offset != nil {
		body["offset"] = offset
	}
	if orderBy != nil {
		direction := "asc"
		if orderBy.Desc {
			direction = "desc"
		}
		body["order_by"] = map[string]interface{}{
			"key":       orderBy.Field,
			"direction": direction,
		}
	}

	var result struct {
		Result struct {
			Points []struct {
				ID      interface{}            `json:"id"`
				Payload map[string]interface{} `json:"payload"`
			} `json:"points"`
			NextPageOffset interface{} `json:"next_page_offset"`
		} `json:"result"`
	}
	_, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", name), body, &result)
	if err != nil {
		return nil, nil, err
	}

	points := make([]Point, 0, len(result.Result.Points))
	for _, p := range result.Result.Points {
		points = append(points, Point{ID: fmt.Sprintf("%v", p.ID), Payload: p.Payload})
	}
	return points, result.Result.NextPageOffset, nil
}

func (s *restStore) Delete(ctx context.Context, name string, ids []string) error {
	body := map[string]interface{}{"points": ids}
	_, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", name), body, nil)
	return err
}

func (s *restStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
