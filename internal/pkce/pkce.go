// Package pkce produces Proof Key for Code Exchange pairs (RFC 7636).
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// MethodS256 is the only challenge method this client sends.
const MethodS256 = "S256"

// Pair holds one login attempt's verifier and the challenge derived from it.
// The verifier must never be reused across attempts.
type Pair struct {
	Verifier  string
	Challenge string
	Method    string
}

// Generate creates a fresh verifier (32 random bytes, 43 base64url chars)
// and its S256 challenge.
func Generate() Pair {
	return FromVerifier(oauth2.GenerateVerifier())
}

// FromVerifier derives the S256 pair for an existing verifier.
func FromVerifier(verifier string) Pair {
	return Pair{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		Method:    MethodS256,
	}
}

// Verify reports whether challenge is the S256 transform of verifier.
func Verify(verifier, challenge string) bool {
	h := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(h[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// ValidVerifier checks length and the unreserved character set.
func ValidVerifier(v string) bool {
	if len(v) < 43 || len(v) > 128 {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
