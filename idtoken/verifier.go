// Package idtoken validates compact signed id_tokens: signature (against a
// remote JWKS for RS256 or a shared secret for HS256), issuer, audience,
// expiry, nonce binding, and max_age derived auth_time freshness.
package idtoken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Alg represents the id_token signing algorithms this package supports.
type Alg string

const (
	RS256 Alg = "RS256"
	HS256 Alg = "HS256"
)

var supportedAlgorithms = map[Alg]bool{
	RS256: true,
	HS256: true,
}

// SupportedAlg reports whether a is a supported signing algorithm.
func SupportedAlg(a Alg) bool {
	return supportedAlgorithms[a]
}

// DefaultLeeway is the clock skew allowed when validating time based claims.
const DefaultLeeway = 60 * time.Second

var (
	// ErrInvalidToken is returned for any verification failure: bad
	// signature, issuer, audience, expiry, nonce, or stale auth_time.
	ErrInvalidToken = errors.New("invalid id_token")

	ErrUnsupportedAlg   = errors.New("unsupported algorithm")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// VerifyOpts are the per-verification inputs assembled by the caller.
type VerifyOpts struct {
	// Leeway overrides the verifier's default clock skew allowance when
	// greater than zero.
	Leeway time.Duration

	// MaxAge, when greater than zero, requires the token to carry an
	// auth_time claim no older than MaxAge (plus leeway).
	MaxAge time.Duration

	// Nonce, when non-empty, must equal the token's nonce claim exactly.
	Nonce string
}

// Verifier validates a compact signed token and returns its decoded claims.
type Verifier interface {
	Verify(ctx context.Context, token string, opts VerifyOpts) (*Claims, error)
}

// TokenVerifier implements Verifier for a single provider and relying party.
type TokenVerifier struct {
	keySet   KeySet
	issuer   string
	clientID string
	leeway   time.Duration
	now      func() time.Time
}

var _ Verifier = (*TokenVerifier)(nil)

// New creates a verifier for tokens issued by https://{domain}/ to clientID.
// The key set is selected by alg: RS256 uses the JWKS published at
// https://{domain}/.well-known/jwks.json, HS256 uses clientSecret as a shared
// key.
// Supported options: WithLeeway, WithHTTPClient, WithKeySet, WithNow
func New(alg Alg, domain string, clientID string, clientSecret []byte, opt ...Option) (*TokenVerifier, error) {
	const op = "idtoken.New"
	opts := getVerifierOpts(opt...)
	if !SupportedAlg(alg) {
		return nil, fmt.Errorf("%s: algorithm %q: %w", op, alg, ErrUnsupportedAlg)
	}
	if domain == "" {
		return nil, fmt.Errorf("%s: domain is empty: %w", op, ErrInvalidParameter)
	}
	if clientID == "" {
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	v := &TokenVerifier{
		keySet:   opts.withKeySet,
		issuer:   fmt.Sprintf("https://%s/", domain),
		clientID: clientID,
		leeway:   opts.withLeeway,
		now:      opts.withNow,
	}
	if v.keySet == nil {
		var err error
		switch alg {
		case HS256:
			v.keySet, err = NewStaticSymmetricKeySet(clientSecret)
		default:
			jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
			v.keySet, err = NewRemoteKeySet(context.Background(), jwksURL, opts.withHTTPClient)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create key set: %w", op, err)
		}
	}
	return v, nil
}

// Verify checks the token's signature and claims and returns the decoded
// claims.  Any mismatch fails with an error wrapping ErrInvalidToken.
func (v *TokenVerifier) Verify(ctx context.Context, token string, opts VerifyOpts) (*Claims, error) {
	const op = "TokenVerifier.Verify"
	if token == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	payload, err := v.keySet.VerifySignature(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidToken)
	}
	claims, err := parseClaims(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidToken)
	}

	leeway := v.leeway
	if opts.Leeway > 0 {
		leeway = opts.Leeway
	}
	now := v.now()

	if claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%s: issuer %q does not match expected %q: %w", op, claims.Issuer, v.issuer, ErrInvalidToken)
	}
	if !claims.hasAudience(v.clientID) {
		return nil, fmt.Errorf("%s: audience %q does not contain %q: %w", op, claims.Audience, v.clientID, ErrInvalidToken)
	}
	if claims.Expiry.IsZero() {
		return nil, fmt.Errorf("%s: exp claim is missing: %w", op, ErrInvalidToken)
	}
	if now.After(claims.Expiry.Add(leeway)) {
		return nil, fmt.Errorf("%s: token expired at %s: %w", op, claims.Expiry, ErrInvalidToken)
	}
	if opts.Nonce != "" && claims.Nonce != opts.Nonce {
		return nil, fmt.Errorf("%s: nonce does not match expected value: %w", op, ErrInvalidToken)
	}
	if opts.MaxAge > 0 {
		if claims.AuthTime.IsZero() {
			return nil, fmt.Errorf("%s: auth_time claim is required when max_age is requested: %w", op, ErrInvalidToken)
		}
		validUntil := claims.AuthTime.Add(opts.MaxAge).Add(leeway)
		if now.After(validUntil) {
			return nil, fmt.Errorf("%s: authentication at %s is older than max_age: %w", op, claims.AuthTime, ErrInvalidToken)
		}
	}
	return claims, nil
}

// verifierOptions is the set of available options for TokenVerifier
type verifierOptions struct {
	withLeeway     time.Duration
	withHTTPClient *http.Client
	withKeySet     KeySet
	withNow        func() time.Time
}

// verifierDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func verifierDefaults() verifierOptions {
	return verifierOptions{
		withLeeway: DefaultLeeway,
		withNow:    time.Now,
	}
}

// getVerifierOpts gets the defaults and applies the opt overrides passed in.
func getVerifierOpts(opt ...Option) verifierOptions {
	opts := verifierDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithLeeway provides an optional default clock skew allowance, replacing
// DefaultLeeway.
func WithLeeway(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*verifierOptions); ok {
			v.withLeeway = d
		}
	}
}

// WithHTTPClient provides an optional http client used for JWKS fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(o interface{}) {
		if v, ok := o.(*verifierOptions); ok {
			v.withHTTPClient = client
		}
	}
}

// WithKeySet provides an optional KeySet, replacing the one selected by
// algorithm.
func WithKeySet(ks KeySet) Option {
	return func(o interface{}) {
		if v, ok := o.(*verifierOptions); ok {
			v.withKeySet = ks
		}
	}
}

// WithNow provides an optional time source, used to test time based claims.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if v, ok := o.(*verifierOptions); ok {
			v.withNow = now
		}
	}
}
