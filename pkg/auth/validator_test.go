package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-jose/go-jose/v3"
)

const testKid = "test-key-1"

func startJWKSServer(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	jwk := jose.JSONWebKey{Key: pub, KeyID: testKid, Algorithm: "RS256", Use: "sig"}
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}}
	body, err := json.Marshal(set)
	require.NoError(t, err)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
}

func signToken(t *testing.T, priv *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()
	header := map[string]any{"alg": "RS256", "typ": "JWT", "kid": testKid}
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	claimsJSON, err := json.Marshal(claims)
	require.NoError(t, err)

	headerSeg := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadSeg := base64.RawURLEncoding.EncodeToString(claimsJSON)
	signingInput := headerSeg + "." + payloadSeg

	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	require.NoError(t, err)
	sigSeg := base64.RawURLEncoding.EncodeToString(sig)

	return signingInput + "." + sigSeg
}

func newValidatorFixture(t *testing.T) (*JWTValidator, *rsa.PrivateKey, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := startJWKSServer(t, &priv.PublicKey)
	t.Cleanup(server.Close)

	cache, err := NewJWKSCache(server.Client(), "")
	require.NoError(t, err)

	opts := JWTValidatorOptions{
		ExpectedIssuer:          server.URL,
		ExpectedAudience:        "api://resource",
		ExpectedAuthorizedParty: "client-123",
	}
	return NewJWTValidator(opts, cache), priv, server.URL
}

func validClaims(issuer string) map[string]any {
	now := time.Now()
	return map[string]any{
		"iss": issuer,
		"aud": "api://resource",
		"azp": "client-123",
		"sub": "user-1",
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
	}
}

func TestJWTValidatorAcceptsWellFormedToken(t *testing.T) {
	v, priv, issuer := newValidatorFixture(t)
	token := signToken(t, priv, validClaims(issuer))

	payload, verr := v.Validate(context.Background(), token)
	require.Nil(t, verr)
	assert.Equal(t, "user-1", payload.Subject)
}

func TestJWTValidatorRejectsExpiredToken(t *testing.T) {
	v, priv, issuer := newValidatorFixture(t)
	claims := validClaims(issuer)
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	token := signToken(t, priv, claims)

	_, verr := v.Validate(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, ErrTokenExpired, verr.Kind)
}

func TestJWTValidatorRejectsWrongIssuer(t *testing.T) {
	v, priv, issuer := newValidatorFixture(t)
	claims := validClaims(issuer)
	claims["iss"] = "https://evil.example"
	token := signToken(t, priv, claims)

	_, verr := v.Validate(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, ErrInvalidIssuer, verr.Kind)
}

func TestJWTValidatorRejectsWrongAudience(t *testing.T) {
	v, priv, issuer := newValidatorFixture(t)
	claims := validClaims(issuer)
	claims["aud"] = "api://other"
	token := signToken(t, priv, claims)

	_, verr := v.Validate(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, ErrInvalidAudience, verr.Kind)
}

func TestJWTValidatorRejectsWrongAuthorizedParty(t *testing.T) {
	v, priv, issuer := newValidatorFixture(t)
	claims := validClaims(issuer)
	claims["azp"] = "someone-else"
	token := signToken(t, priv, claims)

	_, verr := v.Validate(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, ErrInvalidAuthorizedParty, verr.Kind)
}

func TestJWTValidatorRejectsBadSignature(t *testing.T) {
	v, priv, issuer := newValidatorFixture(t)
	token := signToken(t, priv, validClaims(issuer))
	tampered := token[:len(token)-4] + "abcd"

	_, verr := v.Validate(context.Background(), tampered)
	require.NotNil(t, verr)
	assert.Equal(t, ErrInvalidSignature, verr.Kind)
}

func TestJWTValidatorRejectsNonRS256Alg(t *testing.T) {
	v, _, _ := newValidatorFixture(t)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","kid":"k"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{}`))
	token := fmt.Sprintf("%s.%s.sig", header, payload)

	_, verr := v.Validate(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, ErrUnsupportedAlgorithm, verr.Kind)
}

func TestJWTValidatorRejectsMissingKid(t *testing.T) {
	v, _, _ := newValidatorFixture(t)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{}`))
	token := fmt.Sprintf("%s.%s.sig", header, payload)

	_, verr := v.Validate(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, ErrMissingKid, verr.Kind)
}

func TestJWTValidatorRejectsJWE(t *testing.T) {
	v, _, _ := newValidatorFixture(t)
	_, verr := v.Validate(context.Background(), "a.b.c.d.e")
	require.NotNil(t, verr)
	assert.Equal(t, ErrJWENotSupported, verr.Kind)
}
