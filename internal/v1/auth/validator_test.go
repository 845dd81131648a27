package auth_test

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/auth"
)

func digestOf(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func TestVerifyBypassesWhenNoDigestConfigured(t *testing.T) {
	v := auth.NewVerifier("")
	assert.False(t, v.Enabled())
	assert.True(t, v.Verify(""))
	assert.True(t, v.Verify("anything"))
}

func TestVerifyMatchingToken(t *testing.T) {
	v := auth.NewVerifier(digestOf("s3cret"))
	assert.True(t, v.Enabled())
	assert.True(t, v.Verify("s3cret"))
	assert.False(t, v.Verify("wrong"))
	assert.False(t, v.Verify(""))
}

func TestExtractTokenPrefersBearerHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/signal?token=query-token", nil)
	r.Header.Set("Authorization", "Bearer header-token")

	assert.Equal(t, "header-token", auth.ExtractToken(r))
}

func TestExtractTokenFallsBackToQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/signal?token=query-token", nil)
	assert.Equal(t, "query-token", auth.ExtractToken(r))
}

func TestExtractTokenNone(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/signal", nil)
	assert.Equal(t, "", auth.ExtractToken(r))
}
