package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "otltemplate"

type subjectKey struct{}

// Authenticator issues and checks the HS256 bearer tokens that guard the API
type Authenticator struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthenticator creates an authenticator signing with secret. Tokens expire after ttl;
// a zero ttl issues tokens without expiry.
func NewAuthenticator(secret string, ttl time.Duration) (*Authenticator, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth secret must be at least 16 characters")
	}
	return &Authenticator{secret: []byte(secret), tokenTTL: ttl}, nil
}

// IssueToken returns a signed token for subject
func (a *Authenticator) IssueToken(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if a.tokenTTL != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(a.tokenTTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate checks a token and returns its subject
func (a *Authenticator) Validate(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// Require rejects requests without a valid bearer token
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="otltemplate"`)
			writeError(w, http.StatusUnauthorized, errors.New("authorization required"))
			return
		}

		subject, err := a.Validate(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="otltemplate", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
	})
}

// SubjectFrom returns the authenticated subject of a request, if any
func SubjectFrom(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey{}).(string)
	return subject, ok
}
