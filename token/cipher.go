package token

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize = chacha20poly1305.KeySize

	cipherVersion byte = 0x80
	headerSize         = 1 + 8
)

// Cipher is authenticated symmetric encryption for stored tokens. The output is
// base64url(version | timestamp | nonce | ciphertext) with version and timestamp
// bound as associated data, so tampering with any part fails decryption.
type Cipher struct {
	aead cipher.AEAD
	now  func() time.Time
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("[NewCipher] key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("[NewCipher] %w", err)
	}
	return &Cipher{aead: aead, now: time.Now}, nil
}

// ParseKey decodes a base64url key, padded or not.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(encoded), "="))
	if err != nil {
		return nil, fmt.Errorf("[ParseKey] invalid base64url key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("[ParseKey] key must decode to %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// GenerateKey returns a fresh random key in the encoding ParseKey accepts.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	header := make([]byte, headerSize, headerSize+chacha20poly1305.NonceSizeX+len(plaintext)+c.aead.Overhead())
	header[0] = cipherVersion
	binary.BigEndian.PutUint64(header[1:], uint64(c.now().Unix()))

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("[Cipher Encrypt] nonce: %w", err)
	}

	out := append(header, nonce...)
	out = c.aead.Seal(out, nonce, plaintext, header[:headerSize])
	return base64.URLEncoding.EncodeToString(out), nil
}

func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.ErrTokenCorrupted
	}
	if len(raw) < headerSize+chacha20poly1305.NonceSizeX+c.aead.Overhead() || raw[0] != cipherVersion {
		return nil, apperrors.ErrTokenCorrupted
	}

	header := raw[:headerSize]
	nonce := raw[headerSize : headerSize+chacha20poly1305.NonceSizeX]
	sealed := raw[headerSize+chacha20poly1305.NonceSizeX:]

	plaintext, err := c.aead.Open(nil, nonce, sealed, header)
	if err != nil {
		return nil, apperrors.ErrTokenCorrupted
	}
	return plaintext, nil
}

// IssuedAt returns the timestamp embedded in an encrypted payload without decrypting it.
func IssuedAt(encoded string) (time.Time, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil || len(raw) < headerSize {
		return time.Time{}, apperrors.ErrTokenCorrupted
	}
	return time.Unix(int64(binary.BigEndian.Uint64(raw[1:headerSize])), 0), nil
}

func (c *Cipher) EncryptToken(t *Token) (string, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("[Cipher EncryptToken] %w", err)
	}
	return c.Encrypt(payload)
}

func (c *Cipher) DecryptToken(encoded string) (*Token, error) {
	payload, err := c.Decrypt(encoded)
	if err != nil {
		return nil, err
	}
	var t Token
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, apperrors.ErrTokenCorrupted
	}
	return &t, nil
}
