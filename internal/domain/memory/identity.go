package memory

import "github.com/google/uuid"

// deriveID returns the id a memory should have, and whether that id is a
// pure function of a dedupe key. The "v1:" prefix is a schema-version guard:
// a future change to the derivation can alter the literal input without
// colliding with ids produced by this scheme (§4.5.1).
func deriveID(dedupeKey string) (id string, deterministic bool) {
	if dedupeKey == "" {
		return uuid.New().String(), false
	}
	return uuid.NewSHA1(appNamespace, []byte("v1:"+dedupeKey)).String(), true
}
