package idtoken

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestSignHS256 signs the given claim sets into a compact HS256 token.  Each
// element of claimSets is merged into the token payload.
func TestSignHS256(t *testing.T, secret []byte, claimSets ...interface{}) string {
	t.Helper()
	require := require.New(t)
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(err)
	b := jwt.Signed(sig)
	for _, c := range claimSets {
		b = b.Claims(c)
	}
	raw, err := b.CompactSerialize()
	require.NoError(err)
	return raw
}

// TestGenerateRSAKey generates an RSA key pair for signing test tokens.
func TestGenerateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

// TestSignRS256 signs the given claim sets into a compact RS256 token using
// the private key, tagged with keyID.
func TestSignRS256(t *testing.T, key *rsa.PrivateKey, keyID string, claimSets ...interface{}) string {
	t.Helper()
	require := require.New(t)
	sig, err := jose.NewSigner(
		jose.SigningKey{
			Algorithm: jose.RS256,
			Key:       jose.JSONWebKey{Key: key, KeyID: keyID},
		},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(err)
	b := jwt.Signed(sig)
	for _, c := range claimSets {
		b = b.Claims(c)
	}
	raw, err := b.CompactSerialize()
	require.NoError(err)
	return raw
}

// TestJWKSServer starts an httptest server publishing the public half of key
// as a JWKS document and returns the server.  The caller owns closing it.
func TestJWKSServer(t *testing.T, key *rsa.PrivateKey, keyID string) *httptest.Server {
	t.Helper()
	jwks := jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       &key.PublicKey,
				KeyID:     keyID,
				Use:       "sig",
				Algorithm: string(jose.RS256),
			},
		},
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(ts.Close)
	return ts
}
