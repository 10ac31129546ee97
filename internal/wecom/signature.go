package wecom

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// Signature computes the callback digest over token, timestamp, nonce and
// the encrypted payload: the four values are sorted lexicographically,
// concatenated, and SHA-1 hashed. The result is hex encoded.
func Signature(token, timestamp, nonce, payload string) string {
	parts := []string{token, timestamp, nonce, payload}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks the supplied signature against the computed digest
// using a constant-time compare. Returns ErrSignatureMismatch on failure.
func VerifySignature(token, signature, timestamp, nonce, payload string) error {
	expected := Signature(token, timestamp, nonce, payload)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}
