package memory

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/anelcanto/recall/pkg/apperr"
)

// cursorCodec signs and verifies opaque pagination cursors with a keyed MAC
// so clients cannot forge or mutate an offset (§4.3). The encoding is
// normative: canonical payload is {"offset":...}; the envelope adds the
// hex-lowercased HMAC-SHA256 as "qh", then URL-safe base64 with padding.
type cursorCodec struct {
	secret []byte
}

func newCursorCodec(secret []byte) *cursorCodec {
	return &cursorCodec{secret: secret}
}

// newRandomSecret generates a 32-byte hex secret, used when no auth token is
// configured. Cursors then don't survive a restart — acceptable per §4.3.
func newRandomSecret() ([]byte, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate cursor secret: %w", err)
	}
	return []byte(hex.EncodeToString(raw)), nil
}

// NewRandomCursorSecret is the exported form of newRandomSecret, for callers
// outside the package (the container) that need to mint a secret before a
// Store exists.
func NewRandomCursorSecret() ([]byte, error) {
	return newRandomSecret()
}

type cursorPayload struct {
	Offset interface{} `json:"offset"`
}

type cursorEnvelope struct {
	Offset interface{} `json:"offset"`
	QH     string      `json:"qh"`
}

func (c *cursorCodec) mac(offset interface{}) (string, error) {
	payload, err := json.Marshal(cursorPayload{Offset: offset})
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Encode produces an opaque cursor string for offset.
func (c *cursorCodec) Encode(offset interface{}) (string, error) {
	sig, err := c.mac(offset)
	if err != nil {
		return "", err
	}
	envelope, err := json.Marshal(cursorEnvelope{Offset: offset, QH: sig})
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(envelope), nil
}

// Decode recovers the offset from a cursor string, failing with
// InvalidCursor on any decode or MAC mismatch.
func (c *cursorCodec) Decode(cursor string) (interface{}, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidCursor, "cursor is not valid base64", err)
	}

	var envelope cursorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidCursor, "cursor envelope is malformed", err)
	}

	expected, err := c.mac(envelope.Offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidCursor, "failed to verify cursor", err)
	}

	if !hmac.Equal([]byte(expected), []byte(envelope.QH)) {
		return nil, apperr.New(apperr.CodeInvalidCursor, "cursor signature does not match")
	}

	return envelope.Offset, nil
}
