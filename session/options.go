package session

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/oidcware/authflow/idtoken"
	"github.com/oidcware/authflow/provider"
	"github.com/oidcware/authflow/store"
)

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

// configOptions is the set of available options for NewConfig
type configOptions struct {
	withClientSecret  ClientSecret
	withSecretBase64  bool
	withAudience      string
	withScopes        []string
	withResponseMode  ResponseMode
	withResponseType  string
	withAlg           idtoken.Alg
	withLeeway        time.Duration
	withMaxAge        time.Duration
	withSkipUserinfo  bool
	withProviderCA    string
	withPolicy        persistencePolicy
	withStateStrategy StateStrategy
	withStateHandler  StateHandler
	withDurable       store.Store
	withTransient     store.Store
	withClient        provider.Client
	withVerifier      idtoken.Verifier
	withLogger        hclog.Logger
	withNow           func() time.Time
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{
		withScopes:        append([]string{}, DefaultScopes...),
		withResponseMode:  ResponseModeQuery,
		withResponseType:  "code",
		withAlg:           idtoken.RS256,
		withPolicy:        defaultPersistencePolicy(),
		withStateStrategy: StateStrategySession,
		withLogger:        hclog.NewNullLogger(),
		withNow:           time.Now,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// sessionOptions is the set of available options for New
type sessionOptions struct {
	withCallback *Callback
}

func sessionDefaults() sessionOptions {
	return sessionOptions{}
}

// getSessionOpts gets the defaults and applies the opt overrides passed in.
func getSessionOpts(opt ...Option) sessionOptions {
	opts := sessionDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClientSecret provides the relying party secret.
func WithClientSecret(secret ClientSecret) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withClientSecret = secret
			v.withSecretBase64 = false
		}
	}
}

// WithBase64ClientSecret provides the relying party secret as a standard
// base64 encoded value, decoded before use.
func WithBase64ClientSecret(secret ClientSecret) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withClientSecret = secret
			v.withSecretBase64 = true
		}
	}
}

// WithAudience provides an optional audience for the authorize request.
func WithAudience(aud string) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withAudience = aud
		}
	}
}

// WithScopes replaces the default scopes.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withScopes = scopes
		}
	}
}

// WithResponseMode selects where callback parameters are read from.
func WithResponseMode(m ResponseMode) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withResponseMode = m
		}
	}
}

// WithResponseType replaces the default "code" response type.
func WithResponseType(rt string) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withResponseType = rt
		}
	}
}

// WithAlg provides the expected id_token signing algorithm.
func WithAlg(a idtoken.Alg) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withAlg = a
		}
	}
}

// WithLeeway provides an optional clock skew allowance for id_token
// verification, overriding the verifier default.
func WithLeeway(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withLeeway = d
		}
	}
}

// WithMaxAge provides an optional max_age for the authorize request and
// id_token verification.
func WithMaxAge(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withMaxAge = d
		}
	}
}

// WithSkipUserinfo resolves the user identity from the decoded id_token
// instead of the userinfo endpoint.
func WithSkipUserinfo() Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withSkipUserinfo = true
		}
	}
}

// WithProviderCA provides an optional CA cert PEM for provider requests.
func WithProviderCA(pem string) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withProviderCA = pem
		}
	}
}

// WithPersistence replaces the default persistence policy (user persisted,
// tokens not).  Kinds cannot be enabled after construction.
func WithPersistence(user, accessToken, idToken, refreshToken bool) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withPolicy = newPersistencePolicy(user, accessToken, idToken, refreshToken)
		}
	}
}

// WithStateStrategy selects the state handler variant.
func WithStateStrategy(s StateStrategy) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withStateStrategy = s
		}
	}
}

// WithStateHandler provides a custom state handler, replacing the strategy
// selection.
func WithStateHandler(h StateHandler) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withStateHandler = h
		}
	}
}

// WithStores provides the durable and transient stores.  Defaults are two
// independent in-memory stores, the transient one bounded by
// DefaultTransientTTL.
func WithStores(durable, transient store.Store) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withDurable = durable
			v.withTransient = transient
		}
	}
}

// WithClient provides a custom token exchange client, replacing the
// domain-derived one.
func WithClient(c provider.Client) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withClient = c
		}
	}
}

// WithVerifier provides a custom id_token verifier, replacing the one
// selected by algorithm.
func WithVerifier(ver idtoken.Verifier) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withVerifier = ver
		}
	}
}

// WithLogger provides an optional hclog.Logger for debug tracing.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withLogger = l
		}
	}
}

// WithNow provides an optional time source.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if v, ok := o.(*configOptions); ok {
			v.withNow = now
		}
	}
}

// WithCallback binds the inbound callback parameters to a Session at
// construction, enabling the lazy exchange performed by the accessors.
func WithCallback(cb Callback) Option {
	return func(o interface{}) {
		if v, ok := o.(*sessionOptions); ok {
			v.withCallback = &cb
		}
	}
}
