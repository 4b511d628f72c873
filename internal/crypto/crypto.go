// Package crypto supplies the SHA-256 digest, HMAC and random-ID
// primitives spec.md C4 asks for. Key signing and rotation are explicitly
// server-side (spec.md §1 Non-goals); this package never handles private
// key material.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Digest returns the hex-encoded SHA-256 digest of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HMACSHA256 returns the hex-encoded HMAC-SHA256 of data under key.
func HMACSHA256(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256 reports whether mac is the correct HMAC-SHA256 of data
// under key, using a constant-time comparison.
func VerifyHMACSHA256(key, data []byte, mac string) bool {
	expected, err := hex.DecodeString(mac)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(HMACSHA256(key, data))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, want)
}

// NewID returns a locally-generated v4-shape random identifier (spec.md
// §3: "the client generates v4-shape random IDs locally").
func NewID() string {
	return uuid.NewString()
}
