package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func TestNewAuthenticator(t *testing.T) {
	_, err := NewAuthenticator("short", time.Hour)
	assert.Error(t, err)

	auth, err := NewAuthenticator(testSecret, time.Hour)
	require.NoError(t, err)
	_, err = auth.IssueToken("")
	assert.Error(t, err)
}

func TestAuthenticatorValidate(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := auth.IssueToken("road-team")
	require.NoError(t, err)
	subject, err := auth.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "road-team", subject)

	other, err := NewAuthenticator("another-secret-of-16", time.Hour)
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.Error(t, err, "token signed with a different secret")

	expired, err := NewAuthenticator(testSecret, -time.Minute)
	require.NoError(t, err)
	token, err = expired.IssueToken("road-team")
	require.NoError(t, err)
	_, err = auth.Validate(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "x", Issuer: issuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.Validate(none)
	assert.Error(t, err)
}

func TestAuthenticatorGuardsV1Routes(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, 0)
	require.NoError(t, err)
	f := newFixture(t)
	f.handler = f.api.WithAuthenticator(auth).Routes()

	rec := f.post(t, "/v1/classes", f.subset)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	token, err := auth.IssueToken("road-team")
	require.NoError(t, err)
	for header, want := range map[string]int{
		"Bearer " + token: http.StatusOK,
		"Bearer nonsense": http.StatusUnauthorized,
		token:             http.StatusUnauthorized,
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/classes", bytes.NewReader(f.subset))
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, header)
	}

	// health and metrics stay open
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
