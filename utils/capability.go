package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Capability tokens are bearer secrets: possession alone grants access.
// Only the SHA-256 digest is ever persisted; the raw token exists in the
// invitation link and nowhere else.

const capabilityTokenBytes = 32 // 256 bits of entropy

// GenerateCapabilityToken returns a URL-safe random token.
func GenerateCapabilityToken() (string, error) {
	b := make([]byte, capabilityTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate capability token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashCapabilityToken returns the hex SHA-256 digest stored in place of
// the token. One-way by construction.
func HashCapabilityToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyCapabilityToken compares hash(token) against the stored digest in
// constant time. Timing must not leak how much of the digest matched.
func VerifyCapabilityToken(token string, storedHash string) bool {
	computed := HashCapabilityToken(token)
	return hmac.Equal([]byte(computed), []byte(storedHash))
}

// CapabilityTokenPrefix returns a short, loggable prefix of the token for
// rate-limit keying. Never log or persist more than this.
func CapabilityTokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
