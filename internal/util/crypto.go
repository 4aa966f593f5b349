package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Alphabet for human-typed short codes. Excludes 0/O/1/I so a code read off a
// terminal can be typed back without ambiguity.
const ShortCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	ShortCodeLength   = 6
	pollingTokenBytes = 24
	rawTokenBytes     = 48
)

// RawTokenPrefix tags app tokens so logs and support tickets can recognize the
// format at a glance. It is not a security boundary.
const RawTokenPrefix = "ternary_app_"

// NewShortCode returns a code of length n drawn uniformly from
// ShortCodeAlphabet. The alphabet has 32 symbols, so a single random byte
// masked to 5 bits is an unbiased draw.
func NewShortCode(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	code := make([]byte, n)
	for i, b := range bytes {
		code[i] = ShortCodeAlphabet[b&0x1f]
	}
	return string(code), nil
}

// NewPollingToken returns the secret a pairing device uses to retrieve the
// outcome of its link request.
func NewPollingToken() (string, error) {
	bytes := make([]byte, pollingTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// NewRawToken returns a freshly minted app token. The raw value is shown to
// the holder exactly once; only its hash is ever stored.
func NewRawToken() (string, error) {
	bytes := make([]byte, rawTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return RawTokenPrefix + base64.RawURLEncoding.EncodeToString(bytes), nil
}

// TokenHasher turns raw bearer tokens into the lookup hashes stored in the
// database. The salt is process-wide configuration injected at startup; raw
// tokens carry enough entropy that a per-token salt would buy nothing.
type TokenHasher struct {
	salt string
}

func NewTokenHasher(salt string) *TokenHasher {
	return &TokenHasher{salt: salt}
}

func (h *TokenHasher) Hash(raw string) string {
	sum := sha256.Sum256([]byte(h.salt + raw))
	return hex.EncodeToString(sum[:])
}
