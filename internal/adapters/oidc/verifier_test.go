package oidc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://issuer.example.com"

func discoveryServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/auth",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/jwks",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	sig, err := signer.Sign(payload)
	require.NoError(t, err)
	raw, err := sig.CompactSerialize()
	require.NoError(t, err)
	return raw
}

func staticVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keySet := &gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return newVerifier(gooidc.NewVerifier(testIssuer, keySet, &gooidc.Config{ClientID: "repoanalyzer"})), key
}

func TestNewVerifier_Discovery(t *testing.T) {
	srv := discoveryServer(t)

	v, err := NewVerifier(context.Background(), VerifierConfig{
		Issuer:   srv.URL + "/.well-known/openid-configuration",
		ClientID: "repoanalyzer",
	})
	require.NoError(t, err)
	require.NotNil(t, v)

	_, err = v.Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)
}

func TestNewVerifier_ValidationErrors(t *testing.T) {
	_, err := NewVerifier(context.Background(), VerifierConfig{ClientID: "x"})
	require.ErrorContains(t, err, "issuer is required")

	_, err = NewVerifier(context.Background(), VerifierConfig{Issuer: "https://issuer.example.com"})
	require.ErrorContains(t, err, "client ID is required")
}

func TestVerifier_Verify(t *testing.T) {
	v, key := staticVerifier(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	raw := signToken(t, key, map[string]any{
		"iss":            testIssuer,
		"aud":            "repoanalyzer",
		"sub":            "abc-123",
		"samaccountname": "z001234",
		"mail":           "dev@example.com",
		"memberof":       []string{"APP-REPOANALYZER-ADMIN"},
		"exp":            exp.Unix(),
		"iat":            time.Now().Unix(),
	})

	p, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "z001234", p.Subject)
	assert.Equal(t, "dev@example.com", p.Email)
	assert.Equal(t, []string{"APP-REPOANALYZER-ADMIN"}, p.Groups)
	assert.True(t, exp.Equal(p.ExpiresAt))
}

func TestVerifier_RejectsBadTokens(t *testing.T) {
	v, key := staticVerifier(t)
	base := func() map[string]any {
		return map[string]any{
			"iss": testIssuer,
			"aud": "repoanalyzer",
			"sub": "abc",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	expired := base()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongAud := base()
	wrongAud["aud"] = "someone-else"
	wrongIss := base()
	wrongIss["iss"] = "https://evil.example.com"

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":        signToken(t, key, expired),
		"wrong audience": signToken(t, key, wrongAud),
		"wrong issuer":   signToken(t, key, wrongIss),
		"unknown key":    signToken(t, other, base()),
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), raw)
			require.Error(t, err)
		})
	}

	_, err = v.Verify(context.Background(), "  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestMapClaims(t *testing.T) {
	p := mapClaims(idTokenClaims{Sub: "sub-1", Email: "a@example.com", Groups: []string{"g"}})
	assert.Equal(t, "sub-1", p.Subject)
	assert.Equal(t, "a@example.com", p.Email)
	assert.Equal(t, []string{"g"}, p.Groups)
}
