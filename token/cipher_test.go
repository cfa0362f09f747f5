package token_test

import (
	"encoding/base64"
	"testing"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/token"
	"github.com/stretchr/testify/require"
)

func newCipher(t *testing.T) *token.Cipher {
	t.Helper()
	encoded, err := token.GenerateKey()
	require.NoError(t, err)
	key, err := token.ParseKey(encoded)
	require.NoError(t, err)
	c, err := token.NewCipher(key)
	require.NoError(t, err)
	return c
}

func sampleToken() *token.Token {
	return &token.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		ExpiresIn:    1800,
		ExpiresAt:    1_700_001_800,
		IDToken:      "header.payload.sig",
		Scope:        "offline_access openid",
	}
}

func TestCipherRoundTrip(t *testing.T) {
	c := newCipher(t)
	for _, tok := range []*token.Token{sampleToken(), {}, {AccessToken: "ünïcode ✓"}} {
		ct, err := c.EncryptToken(tok)
		require.NoError(t, err)

		got, err := c.DecryptToken(ct)
		require.NoError(t, err)
		require.Equal(t, tok, got)
	}
}

func TestCipherNonceIsUnique(t *testing.T) {
	c := newCipher(t)
	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestCipherWrongKeyIsCorrupted(t *testing.T) {
	ct, err := newCipher(t).EncryptToken(sampleToken())
	require.NoError(t, err)

	_, err = newCipher(t).DecryptToken(ct)
	require.ErrorIs(t, err, apperrors.ErrTokenCorrupted)
}

func TestCipherTamperIsCorrupted(t *testing.T) {
	c := newCipher(t)
	ct, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(ct)
	require.NoError(t, err)

	for _, idx := range []int{0, 3, 12, len(raw) - 1} {
		tampered := append([]byte(nil), raw...)
		tampered[idx] ^= 0x01
		_, err := c.Decrypt(base64.URLEncoding.EncodeToString(tampered))
		require.ErrorIs(t, err, apperrors.ErrTokenCorrupted, "byte %d", idx)
	}

	_, err = c.Decrypt("not base64!")
	require.ErrorIs(t, err, apperrors.ErrTokenCorrupted)
	_, err = c.Decrypt(base64.URLEncoding.EncodeToString(raw[:10]))
	require.ErrorIs(t, err, apperrors.ErrTokenCorrupted)
}

func TestIssuedAtIsEmbedded(t *testing.T) {
	c := newCipher(t)
	ct, err := c.Encrypt([]byte("x"))
	require.NoError(t, err)
	ts, err := token.IssuedAt(ct)
	require.NoError(t, err)
	require.False(t, ts.IsZero())
}

func TestKeyValidation(t *testing.T) {
	_, err := token.NewCipher([]byte("short"))
	require.Error(t, err)

	_, err = token.ParseKey(base64.URLEncoding.EncodeToString([]byte("too short")))
	require.Error(t, err)

	_, err = token.ParseKey("%%%")
	require.Error(t, err)

	raw := make([]byte, token.KeySize)
	key, err := token.ParseKey(base64.RawURLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.Len(t, key, token.KeySize)
}
