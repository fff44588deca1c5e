// Package cryptox provides the content-addressing digest helpers used by
// the blob pipeline. Chunk and blob identities on the wire are SHA-256 hex
// digests of the ciphertext exactly as transmitted; the server never sees
// plaintext and never derives keys.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// DigestHex returns the lowercase SHA-256 hex digest of data.
func DigestHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestEqual reports whether the declared hex digest matches the SHA-256
// digest of data. The comparison is constant-time and case-insensitive on
// the declared value.
func DigestEqual(declared string, data []byte) bool {
	computed := DigestHex(data)
	normalized := strings.ToLower(declared)
	if len(normalized) != len(computed) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(normalized), []byte(computed)) == 1
}

// IsHexDigest reports whether s looks like a hex digest of plausible
// length: even, at least 32 and at most 128 hex characters. It does not
// pin a specific algorithm so future digests longer than SHA-256 pass.
func IsHexDigest(s string) bool {
	if len(s) < 32 || len(s) > 128 || len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(strings.ToLower(s))
	return err == nil
}
