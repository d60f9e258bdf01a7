package memory

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anelcanto/recall/pkg/apperr"
)

func TestCursorCodec_RoundTrips(t *testing.T) {
	c := newCursorCodec([]byte("s3cr3t"))
	encoded, err := c.Encode("page-2")
	require.NoError(t, err)

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "page-2", decoded)
}

func TestCursorCodec_RejectsTamperedPayload(t *testing.T) {
	c := newCursorCodec([]byte("s3cr3t"))
	encoded, err := c.Encode("page-2")
	require.NoError(t, err)

	// Change the signed offset inside a structurally valid envelope, so that
	// the MAC check (not the base64 or JSON decode) is what rejects it.
	raw, err := base64.URLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	tampered := base64.URLEncoding.EncodeToString([]byte(strings.Replace(string(raw), "page-2", "page-9", 1)))
	require.NotEqual(t, encoded, tampered)

	_, err = c.Decode(tampered)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidCursor))

	// A structurally valid cursor signed under another secret is rejected too.
	other := newCursorCodec([]byte("different-secret"))
	forged, err := other.Encode("page-2")
	require.NoError(t, err)

	_, err = c.Decode(forged)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidCursor))
}

func TestCursorCodec_RejectsGarbage(t *testing.T) {
	c := newCursorCodec([]byte("s3cr3t"))
	_, err := c.Decode("not-valid-base64!!!")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidCursor))
}

func TestCursorCodec_DifferentSecretsProduceDifferentSignatures(t *testing.T) {
	a := newCursorCodec([]byte("secret-a"))
	b := newCursorCodec([]byte("secret-b"))

	ea, err := a.Encode("x")
	require.NoError(t, err)
	eb, err := b.Encode("x")
	require.NoError(t, err)

	assert.NotEqual(t, ea, eb)
}
