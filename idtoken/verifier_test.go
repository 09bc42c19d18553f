package idtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2/jwt"
)

const (
	testDomain   = "t.example.com"
	testClientID = "abc"
)

var testSecret = []byte("a-very-well-kept-shared-secret")

type extraClaims struct {
	Nonce    string           `json:"nonce,omitempty"`
	AuthTime *jwt.NumericDate `json:"auth_time,omitempty"`
}

func testStdClaims(now time.Time) jwt.Claims {
	return jwt.Claims{
		Issuer:   "https://" + testDomain + "/",
		Subject:  "auth|123",
		Audience: jwt.Audience{testClientID},
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt: jwt.NewNumericDate(now),
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		alg       Alg
		domain    string
		clientID  string
		secret    []byte
		wantErr   bool
		wantIsErr error
	}{
		{name: "hs256", alg: HS256, domain: testDomain, clientID: testClientID, secret: testSecret},
		{name: "rs256", alg: RS256, domain: testDomain, clientID: testClientID},
		{name: "unsupported-alg", alg: Alg("ES256"), domain: testDomain, clientID: testClientID, wantErr: true, wantIsErr: ErrUnsupportedAlg},
		{name: "missing-domain", alg: RS256, clientID: testClientID, wantErr: true, wantIsErr: ErrInvalidParameter},
		{name: "missing-client-id", alg: RS256, domain: testDomain, wantErr: true, wantIsErr: ErrInvalidParameter},
		{name: "hs256-without-secret", alg: HS256, domain: testDomain, clientID: testClientID, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require := require.New(t)
			got, err := New(tt.alg, tt.domain, tt.clientID, tt.secret)
			if tt.wantErr {
				require.Error(err)
				if tt.wantIsErr != nil {
					require.ErrorIs(err, tt.wantIsErr)
				}
				return
			}
			require.NoError(err)
			require.NotNil(got)
		})
	}
}

func TestTokenVerifier_Verify_HS256(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()

	newVerifier := func(t *testing.T, opt ...Option) *TokenVerifier {
		v, err := New(HS256, testDomain, testClientID, testSecret, opt...)
		require.NoError(t, err)
		return v
	}

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := TestSignHS256(t, testSecret, testStdClaims(now), extraClaims{Nonce: "n_123"})
		claims, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.NoError(err)
		assert.Equal("auth|123", claims.Subject)
		assert.Equal("n_123", claims.Nonce)
		assert.Equal("auth|123", claims.All["sub"])
	})
	t.Run("empty-token", func(t *testing.T) {
		require := require.New(t)
		_, err := newVerifier(t).Verify(ctx, "", VerifyOpts{})
		require.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("wrong-secret", func(t *testing.T) {
		require := require.New(t)
		raw := TestSignHS256(t, []byte("some-other-secret"), testStdClaims(now), extraClaims{Nonce: "n_123"})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.ErrorIs(err, ErrInvalidToken)
	})
	t.Run("wrong-issuer", func(t *testing.T) {
		require := require.New(t)
		std := testStdClaims(now)
		std.Issuer = "https://evil.example.com/"
		raw := TestSignHS256(t, testSecret, std, extraClaims{Nonce: "n_123"})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.ErrorIs(err, ErrInvalidToken)
	})
	t.Run("wrong-audience", func(t *testing.T) {
		require := require.New(t)
		std := testStdClaims(now)
		std.Audience = jwt.Audience{"someone-else"}
		raw := TestSignHS256(t, testSecret, std, extraClaims{Nonce: "n_123"})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.ErrorIs(err, ErrInvalidToken)
	})
	t.Run("expired", func(t *testing.T) {
		require := require.New(t)
		std := testStdClaims(now)
		std.Expiry = jwt.NewNumericDate(now.Add(-time.Hour))
		raw := TestSignHS256(t, testSecret, std, extraClaims{Nonce: "n_123"})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.ErrorIs(err, ErrInvalidToken)
	})
	t.Run("expired-within-leeway-passes", func(t *testing.T) {
		require := require.New(t)
		std := testStdClaims(now)
		std.Expiry = jwt.NewNumericDate(now.Add(-30 * time.Second))
		raw := TestSignHS256(t, testSecret, std, extraClaims{Nonce: "n_123"})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.NoError(err)
	})
	t.Run("missing-exp", func(t *testing.T) {
		require := require.New(t)
		std := testStdClaims(now)
		std.Expiry = nil
		raw := TestSignHS256(t, testSecret, std, extraClaims{Nonce: "n_123"})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.ErrorIs(err, ErrInvalidToken)
	})
	t.Run("nonce-mismatch", func(t *testing.T) {
		require := require.New(t)
		raw := TestSignHS256(t, testSecret, testStdClaims(now), extraClaims{Nonce: "n_other"})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.ErrorIs(err, ErrInvalidToken)
	})
	t.Run("nonce-not-required-when-not-expected", func(t *testing.T) {
		require := require.New(t)
		raw := TestSignHS256(t, testSecret, testStdClaims(now))
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{})
		require.NoError(err)
	})
	t.Run("max-age-fresh", func(t *testing.T) {
		require := require.New(t)
		raw := TestSignHS256(t, testSecret, testStdClaims(now), extraClaims{
			Nonce:    "n_123",
			AuthTime: jwt.NewNumericDate(now.Add(-time.Minute)),
		})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123", MaxAge: time.Hour})
		require.NoError(err)
	})
	t.Run("max-age-stale", func(t *testing.T) {
		require := require.New(t)
		raw := TestSignHS256(t, testSecret, testStdClaims(now), extraClaims{
			Nonce:    "n_123",
			AuthTime: jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123", MaxAge: time.Hour})
		require.ErrorIs(err, ErrInvalidToken)
	})
	t.Run("max-age-without-auth-time", func(t *testing.T) {
		require := require.New(t)
		raw := TestSignHS256(t, testSecret, testStdClaims(now), extraClaims{Nonce: "n_123"})
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123", MaxAge: time.Hour})
		require.ErrorIs(err, ErrInvalidToken)
	})
	t.Run("leeway-override", func(t *testing.T) {
		require := require.New(t)
		std := testStdClaims(now)
		std.Expiry = jwt.NewNumericDate(now.Add(-30 * time.Second))
		raw := TestSignHS256(t, testSecret, std, extraClaims{Nonce: "n_123"})
		// a strict caller-supplied leeway fails where the default passes
		_, err := newVerifier(t).Verify(ctx, raw, VerifyOpts{Nonce: "n_123", Leeway: time.Second})
		require.ErrorIs(err, ErrInvalidToken)
	})
}

func TestTokenVerifier_Verify_RS256(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()

	key := TestGenerateRSAKey(t)
	jwks := TestJWKSServer(t, key, "kid-1")
	ks, err := NewRemoteKeySet(context.Background(), jwks.URL, nil)
	require.NoError(t, err)

	v, err := New(RS256, testDomain, testClientID, nil, WithKeySet(ks))
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		raw := TestSignRS256(t, key, "kid-1", testStdClaims(now), extraClaims{Nonce: "n_123"})
		claims, err := v.Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.NoError(err)
		assert.Equal("auth|123", claims.Subject)
	})
	t.Run("wrong-key", func(t *testing.T) {
		require := require.New(t)
		otherKey := TestGenerateRSAKey(t)
		raw := TestSignRS256(t, otherKey, "kid-1", testStdClaims(now), extraClaims{Nonce: "n_123"})
		_, err := v.Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.ErrorIs(err, ErrInvalidToken)
	})
	t.Run("hs256-token-rejected-by-remote-keyset", func(t *testing.T) {
		require := require.New(t)
		raw := TestSignHS256(t, testSecret, testStdClaims(now), extraClaims{Nonce: "n_123"})
		_, err := v.Verify(ctx, raw, VerifyOpts{Nonce: "n_123"})
		require.ErrorIs(err, ErrInvalidToken)
	})
}

func TestStaticSymmetricKeySet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty-key", func(t *testing.T) {
		require := require.New(t)
		_, err := NewStaticSymmetricKeySet(nil)
		require.Error(err)
	})
	t.Run("rejects-rs256", func(t *testing.T) {
		require := require.New(t)
		ks, err := NewStaticSymmetricKeySet(testSecret)
		require.NoError(err)
		key := TestGenerateRSAKey(t)
		raw := TestSignRS256(t, key, "kid-1", testStdClaims(time.Now()))
		_, err = ks.VerifySignature(ctx, raw)
		require.Error(err)
	})
	t.Run("garbage-token", func(t *testing.T) {
		require := require.New(t)
		ks, err := NewStaticSymmetricKeySet(testSecret)
		require.NoError(err)
		_, err = ks.VerifySignature(ctx, "not-a-jwt")
		require.Error(err)
	})
}
