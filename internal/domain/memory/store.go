package memory

import (
	"context"
	"sync"
	"time"

	"github.com/anelcanto/recall/internal/domain/embedding"
	"github.com/anelcanto/recall/internal/domain/vectorstore"
	"github.com/anelcanto/recall/pkg/apperr"
	"github.com/anelcanto/recall/pkg/logger"
)

// Config configures a Store.
type Config struct {
	CollectionName string
	Model          string
	LockTableSize  int
	CacheTTL       time.Duration
	CursorSecret   []byte
}

// Store is the orchestrating core of the service: it owns collection
// lifecycle, identity/dedup, write coordination, search/list/delete
// semantics, error mapping, and existence caching, built entirely on the
// embedding.Client and vectorstore.Store capability contracts (§4.5).
type Store struct {
	vs       vectorstore.Store
	embedder embedding.Client
	logger   logger.Logger

	collection string
	model      string

	locks  *lockTable
	cursor *cursorCodec

	existsMu       sync.Mutex
	existsTrue     bool
	existsCachedAt time.Time
	cacheTTL       time.Duration
}

// New builds a Store. One instance is a process-scoped singleton.
func New(vs vectorstore.Store, embedder embedding.Client, log logger.Logger, cfg Config) *Store {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Store{
		vs:         vs,
		embedder:   embedder,
		logger:     log,
		collection: cfg.CollectionName,
		model:      cfg.Model,
		locks:      newLockTable(cfg.LockTableSize),
		cursor:     newCursorCodec(cfg.CursorSecret),
		cacheTTL:   ttl,
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// --- existence cache (§4.5.3) ---

func (s *Store) cachedExists() (bool, bool) {
	s.existsMu.Lock()
	defer s.existsMu.Unlock()
	if s.existsTrue && time.Since(s.existsCachedAt) < s.cacheTTL {
		return true, true
	}
	return false, false
}

func (s *Store) setExistsTrue() {
	s.existsMu.Lock()
	defer s.existsMu.Unlock()
	s.existsTrue = true
	s.existsCachedAt = time.Now()
}

func (s *Store) invalidateExists() {
	s.existsMu.Lock()
	defer s.existsMu.Unlock()
	s.existsTrue = false
}

// collectionExists checks whether the collection exists, using the 30s
// positive-only cache described in §4.5.3.
func (s *Store) collectionExists(ctx context.Context) (bool, error) {
	if cached, ok := s.cachedExists(); ok {
		return cached, nil
	}

	exists, err := s.vs.CollectionExists(ctx, s.collection)
	if err != nil {
		s.invalidateExists()
		return false, apperr.Wrap(apperr.CodeVectorStoreUnavailable, "failed to check collection existence", err)
	}
	if exists {
		s.setExistsTrue()
	} else {
		s.invalidateExists()
	}
	return exists, nil
}

// EnsureCollection creates the collection (with its sentinel point) if it
// does not already exist (§4.5.3). Called at the top of every write.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	dim, err := s.embedder.ProbeDimension(ctx)
	if err != nil {
		return err
	}

	if err := s.vs.CreateCollection(ctx, s.collection, dim, vectorstore.DistanceCosine, false); err != nil {
		return apperr.Wrap(apperr.CodeVectorStoreUnavailable, "failed to create collection", err)
	}

	for _, idx := range []struct{ field, schema string }{
		{"dedupe_key", vectorstore.SchemaKeyword},
		{"tags", vectorstore.SchemaKeyword},
		{"source", vectorstore.SchemaKeyword},
		{"written_at", vectorstore.SchemaDatetime},
	} {
		if err := s.vs.CreatePayloadIndex(ctx, s.collection, idx.field, idx.schema); err != nil {
			// Indexes are an optimisation, not a correctness requirement.
			s.logger.Warn("payload index creation failed", "field", idx.field, "error", err)
		}
	}

	zeroVector := make([]float64, dim)
	sentinelPayload := map[string]interface{}{
		"schema_version": schemaVersion,
		"_meta":          true,
		"model":          s.model,
		"dim":            dim,
	}
	if err := s.vs.Upsert(ctx, s.collection, []vectorstore.Point{
		{ID: sentinelIDString, Vector: zeroVector, Payload: sentinelPayload},
	}); err != nil {
		return apperr.Wrap(apperr.CodeVectorStoreUnavailable, "failed to write collection sentinel", err)
	}

	s.setExistsTrue()
	return nil
}

// ValidateModel is a startup-only check: if the collection already exists
// under a different embedding model or dimension, the process must refuse
// to serve (§4.5.3 model validation).
func (s *Store) ValidateModel(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		s.logger.Warn("could not check collection existence during startup validation", "error", err)
		return nil
	}
	if !exists {
		return nil
	}

	points, err := s.vs.Retrieve(ctx, s.collection, []string{sentinelIDString}, true)
	if err != nil || len(points) == 0 {
		s.logger.Warn("collection sentinel missing, skipping model validation (pre-versioned or externally created collection)")
		return nil
	}

	payload := points[0].Payload
	if !isSentinel(payload) {
		s.logger.Warn("sentinel point missing _meta flag, skipping model validation")
		return nil
	}
	storedModel, hasModel := payload["model"].(string)
	if !hasModel {
		s.logger.Warn("sentinel point missing model field, skipping model validation")
		return nil
	}

	dim, err := s.embedder.ProbeDimension(ctx)
	if err != nil {
		s.logger.Warn("embedding service unreachable, skipping startup model validation", "error", err)
		return nil
	}

	// JSON-decoded payloads carry numbers as float64; payloads that never
	// went through JSON keep the int written by EnsureCollection.
	var storedDim int
	switch d := payload["dim"].(type) {
	case float64:
		storedDim = int(d)
	case int:
		storedDim = d
	}
	if storedModel != s.model || storedDim != dim {
		return apperr.Newf(apperr.CodeModelMismatch,
			"collection %q was created with model %q (dim %d), configured model is %q (dim %d)",
			s.collection, storedModel, storedDim, s.model, dim)
	}
	return nil
}

// Upsert implements the write protocol of §4.5.2.
func (s *Store) Upsert(ctx context.Context, in CreateInput) (UpsertResult, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return UpsertResult{}, err
	}

	now := nowRFC3339()
	id, deterministic := deriveID(in.DedupeKey)

	if !deterministic {
		vec, err := s.embedder.Embed(ctx, in.Text)
		if err != nil {
			return UpsertResult{}, err
		}
		if err := s.upsertPoint(ctx, id, vec, in, now, now); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{ID: id, IDStrategy: StrategyRandom}, nil
	}

	mu := s.locks.getOrCreate(id)
	mu.Lock()
	defer mu.Unlock()

	firstWrittenAt := now
	existed := false

	points, err := s.vs.Retrieve(ctx, s.collection, []string{id}, true)
	if err == nil && len(points) > 0 {
		existed = true
		if fw, ok := points[0].Payload["first_written_at"].(string); ok && fw != "" {
			firstWrittenAt = fw
		}
	}
	// Retrieval errors (transport or not-found) are treated as not-found
	// for this decision — the write must not be aborted by them (§4.5.2.a).

	vec, err := s.embedder.Embed(ctx, in.Text)
	if err != nil {
		return UpsertResult{}, err
	}

	if err := s.upsertPoint(ctx, id, vec, in, now, firstWrittenAt); err != nil {
		return UpsertResult{}, err
	}

	strategy := StrategyRandom
	if existed {
		strategy = StrategyDeduped
	}
	return UpsertResult{ID: id, IDStrategy: strategy}, nil
}

func (s *Store) upsertPoint(ctx context.Context, id string, vector []float64, in CreateInput, writtenAt, firstWrittenAt string) error {
	payload := map[string]interface{}{
		"text":             in.Text,
		"tags":             in.Tags,
		"source":           in.Source,
		"dedupe_key":       in.DedupeKey,
		"external_id":      in.ExternalID,
		"written_at":       writtenAt,
		"first_written_at": firstWrittenAt,
		"schema_version":   schemaVersion,
	}
	if err := s.vs.Upsert(ctx, s.collection, []vectorstore.Point{{ID: id, Vector: vector, Payload: payload}}); err != nil {
		s.invalidateExists()
		return apperr.Wrap(apperr.CodeVectorStoreUnavailable, "failed to upsert memory", err)
	}
	return nil
}

// notSentinelFilter excludes the collection sentinel from reads (§4.5.4/5, P3).
func notSentinelFilter() *vectorstore.Filter {
	return &vectorstore.Filter{Must: []vectorstore.Condition{{Field: "_meta", NotMatch: true}}}
}

// Search implements §4.5.4.
func (s *Store) Search(ctx context.Context, query string, topK int, includeText bool) ([]Record, error) {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []Record{}, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.vs.Search(ctx, s.collection, vec, topK, notSentinelFilter(), true)
	if err != nil {
		s.invalidateExists()
		if err == vectorstore.ErrNotFound {
			return []Record{}, nil
		}
		return nil, apperr.Wrap(apperr.CodeVectorStoreUnavailable, "search failed", err)
	}

	records := make([]Record, 0, len(hits))
	for _, h := range hits {
		if isSentinel(h.Payload) {
			continue
		}
		r := payloadToRecord(h.ID, h.Payload, includeText)
		r.Score = h.Score
		records = append(records, r)
	}
	return records, nil
}

// List implements §4.5.5.
func (s *Store) List(ctx context.Context, limit int, cursor string) ([]Record, string, error) {
	var offset interface{}
	if cursor != "" {
		decoded, err := s.cursor.Decode(cursor)
		if err != nil {
			return nil, "", err
		}
		offset = decoded
	}

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return nil, "", err
	}
	if !exists {
		return []Record{}, "", nil
	}

	orderBy := &vectorstore.OrderBy{Field: "written_at", Desc: true}
	points, next, err := s.vs.Scroll(ctx, s.collection, notSentinelFilter(), limit, offset, orderBy, true)
	if err != nil {
		s.invalidateExists()
		if err == vectorstore.ErrNotFound {
			return []Record{}, "", nil
		}
		return nil, "", apperr.Wrap(apperr.CodeVectorStoreUnavailable, "list failed", err)
	}

	records := make([]Record, 0, len(points))
	for _, p := range points {
		if isSentinel(p.Payload) {
			continue
		}
		records = append(records, payloadToRecord(p.ID, p.Payload, true))
	}

	if next == nil {
		return records, "", nil
	}
	nextCursor, err := s.cursor.Encode(next)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeInternal, "failed to encode next cursor", err)
	}
	return records, nextCursor, nil
}

// Delete implements §4.5.6.
func (s *Store) Delete(ctx context.Context, id string) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.New(apperr.CodeNotFound, "collection does not exist")
	}

	points, err := s.vs.Retrieve(ctx, s.collection, []string{id}, false)
	if err != nil {
		s.invalidateExists()
		if err == vectorstore.ErrNotFound {
			return apperr.New(apperr.CodeNotFound, "memory not found")
		}
		return apperr.Wrap(apperr.CodeVectorStoreUnavailable, "failed to check memory existence", err)
	}
	if len(points) == 0 {
		return apperr.New(apperr.CodeNotFound, "memory not found")
	}

	if err := s.vs.Delete(ctx, s.collection, []string{id}); err != nil {
		s.invalidateExists()
		return apperr.Wrap(apperr.CodeVectorStoreUnavailable, "failed to delete memory", err)
	}
	return nil
}

// Close releases the underlying vector-store connection.
func (s *Store) Close() error {
	return s.vs.Close()
}
