// Package memory implements the orchestrating core of the service: identity
// and deduplication, write coordination, collection lifecycle, and the
// search/list/delete semantics built on top of the embedding client and
// vector-store adapter capability contracts.
package memory

import "github.com/google/uuid"

// appNamespace is a fixed, arbitrary namespace (the well-known DNS namespace
// UUID, reused as an app-wide constant) used to derive deterministic ids
// from dedupe keys and the sentinel id. It must never change, or every
// existing deduped id would silently shift identity.
var appNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

const schemaVersion = 1

// sentinelIDString is cached as a string because it's passed to the engine
// as a point id whenever the sentinel is written or retrieved.
var sentinelIDString = uuid.NewSHA1(appNamespace, []byte("__meta__")).String()

// Record is the unit of storage: the canonical shape a caller gets back
// from search/list, independent of how the vector store represents it.
type Record struct {
	ID             string
	Tags           []string
	Source         string
	DedupeKey      string
	ExternalID     string
	Text           string
	WrittenAt      string
	FirstWrittenAt string
	SchemaVersion  int
	Score          float64 // only meaningful for search results
}

// CreateInput is the payload accepted by Upsert.
type CreateInput struct {
	Text       string
	Tags       []string
	Source     string
	DedupeKey  string
	ExternalID string
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	ID         string
	IDStrategy string // "random" or "deduped"
}

const (
	StrategyRandom  = "random"
	StrategyDeduped = "deduped"
)

// payloadToRecord maps a vector-store payload (as stored by upsertPoint)
// back into a Record, omitting Text whenever includeText is false.
func payloadToRecord(id string, payload map[string]interface{}, includeText bool) Record {
	r := Record{ID: id}
	if v, ok := payload["tags"].([]interface{}); ok {
		for _, t := range v {
			if s, ok := t.(string); ok {
				r.Tags = append(r.Tags, s)
			}
		}
	}
	if v, ok := payload["source"].(string); ok {
		r.Source = v
	}
	if v, ok := payload["dedupe_key"].(string); ok {
		r.DedupeKey = v
	}
	if v, ok := payload["external_id"].(string); ok {
		r.ExternalID = v
	}
	if v, ok := payload["written_at"].(string); ok {
		r.WrittenAt = v
	}
	if v, ok := payload["first_written_at"].(string); ok {
		r.FirstWrittenAt = v
	}
	if v, ok := payload["schema_version"].(float64); ok {
		r.SchemaVersion = int(v)
	}
	if includeText {
		if v, ok := payload["text"].(string); ok {
			r.Text = v
		}
	}
	return r
}

// isSentinel reports whether a payload is the collection sentinel, which
// must never be visible to callers (I4, P3).
func isSentinel(payload map[string]interface{}) bool {
	v, ok := payload["_meta"].(bool)
	return ok && v
}
