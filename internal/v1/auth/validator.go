// Package auth implements the Credential Verifier: constant-time
// comparison of a bearer token against a single configured shared-secret
// digest. There are no claims, no issuer, no audience — one secret, one
// digest.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// Verifier holds the hex-encoded SHA-256 digest of the shared bearer
// secret. An empty digest disables auth: every token verifies.
type Verifier struct {
	digest string
}

// NewVerifier constructs a Verifier from a hex-encoded SHA-256 digest, as
// produced by config.Load from SIGNAL_TOKEN_SHA256. An empty digest
// means auth is disabled.
func NewVerifier(hexDigest string) *Verifier {
	return &Verifier{digest: strings.ToLower(hexDigest)}
}

// Enabled reports whether a digest is configured.
func (v *Verifier) Enabled() bool {
	return v.digest != ""
}

// Verify reports whether rawToken matches the configured digest.
// Returns true unconditionally when no digest is configured. A
// non-matching length fails immediately but through the same
// constant-time compare path as a matching length, so length alone
// carries no exploitable timing signal beyond what's already observable
// from distinct digest sizes (a config-loaded digest and the computed
// one are both 64 hex characters).
func (v *Verifier) Verify(rawToken string) bool {
	if v.digest == "" {
		return true
	}
	if rawToken == "" {
		return false
	}

	sum := sha256.Sum256([]byte(rawToken))
	got := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(got), []byte(v.digest)) == 1
}

// ExtractToken pulls the bearer token from an HTTP request: the
// "Authorization: Bearer <t>" header wins, falling back to the "token"
// query parameter.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return after
		}
	}
	return r.URL.Query().Get("token")
}
