package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/oidcware/authflow/idtoken"
	"github.com/oidcware/authflow/provider"
	"github.com/oidcware/authflow/store"
)

// ClientSecret is the relying party secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// ResponseMode selects where the callback's code and state parameters are
// read from.
type ResponseMode string

const (
	// ResponseModeQuery reads the callback parameters from the URL query
	// string.
	ResponseModeQuery ResponseMode = "query"

	// ResponseModeFormPost reads the callback parameters from the
	// submitted form body.
	ResponseModeFormPost ResponseMode = "form_post"
)

// StateStrategy selects the state handler variant wired at construction.
type StateStrategy string

const (
	// StateStrategySession records issued state in the transient store and
	// validates by single-use exact match.
	StateStrategySession StateStrategy = "session"

	// StateStrategyPassthrough issues values without persisting and
	// accepts any callback state.  Use only when the caller handles CSRF
	// protection itself.
	StateStrategyPassthrough StateStrategy = "passthrough"
)

// DefaultScopes are the scopes requested when none are configured.
var DefaultScopes = []string{"openid", "profile", "email"}

// DefaultTransientTTL bounds the lifetime of in-flight transaction data
// (nonce, max_age, state) in the default transient store.
const DefaultTransientTTL = 10 * time.Minute

// Config holds the configuration for a Session.  It is immutable after
// construction.
type Config struct {
	// Domain is the provider domain, e.g. "tenant.example.com".
	Domain string

	// ClientID is the relying party id.
	ClientID string

	// ClientSecret is the relying party secret.  Required for HS256 and
	// for confidential code exchange.
	ClientSecret ClientSecret

	// RedirectURI is the callback URL registered with the provider.
	RedirectURI string

	// Audience is an optional audience sent on the authorize request.
	Audience string

	// Scopes requested of the provider.  Defaults to DefaultScopes.
	Scopes []string

	// ResponseMode selects query or form_post callbacks.  Defaults to
	// ResponseModeQuery.
	ResponseMode ResponseMode

	// ResponseType defaults to "code".
	ResponseType string

	// Alg is the expected id_token signing algorithm.  Defaults to RS256.
	Alg idtoken.Alg

	// Leeway overrides the verifier's default clock skew allowance when
	// greater than zero.
	Leeway time.Duration

	// MaxAge, when greater than zero, is sent on the authorize request and
	// enforced against the id_token's auth_time at verification.
	MaxAge time.Duration

	// SkipUserinfo resolves the user identity from the decoded id_token
	// instead of calling the provider's userinfo endpoint.
	SkipUserinfo bool

	// ProviderCA is an optional CA cert PEM to trust when sending
	// requests to the provider.
	ProviderCA string

	policy        persistencePolicy
	stateStrategy StateStrategy
	stateHandler  StateHandler
	durable       store.Store
	transient     store.Store
	client        provider.Client
	verifier      idtoken.Verifier
	logger        hclog.Logger
	now           func() time.Time
	secret        []byte // decoded client secret
}

// NewConfig composes and validates a Config.  Domain, clientID and
// redirectURI are required.
// Supported options: WithClientSecret, WithBase64ClientSecret, WithAudience,
// WithScopes, WithResponseMode, WithResponseType, WithAlg, WithLeeway,
// WithMaxAge, WithSkipUserinfo, WithProviderCA, WithPersistence,
// WithStateStrategy, WithStateHandler, WithStores, WithClient, WithVerifier,
// WithLogger, WithNow
func NewConfig(domain string, clientID string, redirectURI string, opt ...Option) (*Config, error) {
	const op = "session.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Domain:        domain,
		ClientID:      clientID,
		ClientSecret:  opts.withClientSecret,
		RedirectURI:   redirectURI,
		Audience:      opts.withAudience,
		Scopes:        opts.withScopes,
		ResponseMode:  opts.withResponseMode,
		ResponseType:  opts.withResponseType,
		Alg:           opts.withAlg,
		Leeway:        opts.withLeeway,
		MaxAge:        opts.withMaxAge,
		SkipUserinfo:  opts.withSkipUserinfo,
		ProviderCA:    opts.withProviderCA,
		policy:        opts.withPolicy,
		stateStrategy: opts.withStateStrategy,
		stateHandler:  opts.withStateHandler,
		durable:       opts.withDurable,
		transient:     opts.withTransient,
		client:        opts.withClient,
		verifier:      opts.withVerifier,
		logger:        opts.withLogger,
		now:           opts.withNow,
	}
	c.secret = []byte(opts.withClientSecret)
	if opts.withSecretBase64 {
		decoded, err := base64.StdEncoding.DecodeString(string(opts.withClientSecret))
		if err != nil {
			return nil, fmt.Errorf("%s: client secret is not valid base64: %w", op, ErrConfiguration)
		}
		c.secret = decoded
	}
	if c.durable == nil {
		c.durable = store.NewMemory()
	}
	if c.transient == nil {
		c.transient = store.NewMemory(store.WithTTL(DefaultTransientTTL))
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Validate the session configuration.
func (c *Config) Validate() error {
	const op = "session.Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.Domain == "" {
		return fmt.Errorf("%s: domain is empty: %w", op, ErrConfiguration)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrConfiguration)
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("%s: redirect URI is empty: %w", op, ErrConfiguration)
	}
	if !idtoken.SupportedAlg(c.Alg) {
		return fmt.Errorf("%s: unsupported id_token algorithm %q: %w", op, c.Alg, ErrConfiguration)
	}
	switch c.ResponseMode {
	case ResponseModeQuery, ResponseModeFormPost:
	default:
		return fmt.Errorf("%s: unsupported response mode %q: %w", op, c.ResponseMode, ErrConfiguration)
	}
	switch c.stateStrategy {
	case StateStrategySession, StateStrategyPassthrough:
	default:
		if c.stateHandler == nil {
			return fmt.Errorf("%s: unsupported state strategy %q: %w", op, c.stateStrategy, ErrConfiguration)
		}
	}
	if c.Alg == idtoken.HS256 && len(c.secret) == 0 {
		return fmt.Errorf("%s: HS256 requires a client secret: %w", op, ErrConfiguration)
	}
	return nil
}
