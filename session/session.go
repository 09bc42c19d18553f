package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/oidcware/authflow/idtoken"
	"github.com/oidcware/authflow/provider"
	sdkhttp "github.com/oidcware/authflow/sdk/http"
	"github.com/oidcware/authflow/sdk/id"
	"github.com/oidcware/authflow/store"
)

// Transient store keys for in-flight transaction data.  Each value is
// consumed (read then deleted) exactly once during id_token verification.
const (
	transientNonceKey  = "nonce"
	transientMaxAgeKey = "max_age"
)

// Session orchestrates one user's authentication transaction: building the
// login redirect, completing the exchange exactly once, verifying and
// persisting tokens, renewing via refresh token, and logging out.
//
// A Session is built fresh per inbound request and is not safe for
// concurrent use.  The backing stores are the only state shared across
// requests.
type Session struct {
	config    *Config
	client    provider.Client
	verifier  idtoken.Verifier
	state     StateHandler
	durable   store.Store
	transient store.Store
	logger    hclog.Logger
	callback  *Callback

	user          map[string]interface{}
	accessToken   provider.AccessToken
	idToken       provider.IDToken
	refreshToken  provider.RefreshToken
	idTokenClaims *idtoken.Claims

	// exchanged records that Exchange ran (even as a no-op), so the lazy
	// exchange behind the accessors triggers at most once.
	exchanged bool
}

// New creates a Session from a validated Config, wiring the token exchange
// client, id_token verifier and state handler the config selects, and
// hydrating previously persisted identity state from the durable store.
// Supported options: WithCallback
func New(ctx context.Context, c *Config, opt ...Option) (*Session, error) {
	const op = "session.New"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getSessionOpts(opt...)

	s := &Session{
		config:    c,
		client:    c.client,
		verifier:  c.verifier,
		state:     c.stateHandler,
		durable:   c.durable,
		transient: c.transient,
		logger:    c.logger,
		callback:  opts.withCallback,
	}
	if s.client == nil {
		client, err := provider.NewAuthCodeClient(c.Domain, c.ClientID, string(c.secret),
			provider.WithProviderCA(c.ProviderCA))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create provider client: %w", op, err)
		}
		s.client = client
	}
	if s.verifier == nil {
		var verifierOpts []idtoken.Option
		if c.ProviderCA != "" {
			httpClient, err := sdkhttp.NewClient(c.ProviderCA)
			if err != nil {
				return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
			}
			verifierOpts = append(verifierOpts, idtoken.WithHTTPClient(httpClient))
		}
		verifier, err := idtoken.New(c.Alg, c.Domain, c.ClientID, c.secret, verifierOpts...)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create id_token verifier: %w", op, err)
		}
		s.verifier = verifier
	}
	if s.state == nil {
		switch c.stateStrategy {
		case StateStrategyPassthrough:
			s.state = PassthroughStateHandler{}
		default:
			handler, err := NewTransientStateHandler(s.transient)
			if err != nil {
				return nil, fmt.Errorf("%s: unable to create state handler: %w", op, err)
			}
			s.state = handler
		}
	}
	if err := s.hydrate(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// SetCallback binds the inbound callback parameters after construction.
func (s *Session) SetCallback(cb Callback) {
	s.callback = &cb
}

// AuthURL builds the login redirect URL.  Configured defaults (scope,
// audience, response mode and type, redirect URI, max_age) are merged with
// extra; caller values win and empty values are dropped.  A state is issued
// through the state handler unless extra supplies one, in which case it is
// registered for later validation.  A fresh nonce is generated unless extra
// supplies one.  The nonce (and max_age when set) is recorded in the
// transient store for the round trip; the durable store is not touched.
func (s *Session) AuthURL(ctx context.Context, extra map[string]string) (string, error) {
	const op = "Session.AuthURL"
	params := url.Values{}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	set("scope", strings.Join(s.config.Scopes, " "))
	set("audience", s.config.Audience)
	set("response_type", s.config.ResponseType)
	set("redirect_uri", s.config.RedirectURI)
	if s.config.ResponseMode == ResponseModeFormPost {
		set("response_mode", string(ResponseModeFormPost))
	}
	if s.config.MaxAge > 0 {
		set("max_age", strconv.FormatInt(int64(s.config.MaxAge/time.Second), 10))
	}

	var state string
	for k, v := range extra {
		if k == "state" {
			state = v
			continue
		}
		if v == "" { // an empty caller value drops the configured default
			params.Del(k)
			continue
		}
		params.Set(k, v)
	}

	var err error
	switch {
	case state == "":
		if state, err = s.state.Issue(ctx); err != nil {
			return "", fmt.Errorf("%s: unable to issue state: %w", op, err)
		}
	default:
		if err = s.state.Store(ctx, state); err != nil {
			return "", fmt.Errorf("%s: unable to record supplied state: %w", op, err)
		}
	}

	nonce := params.Get("nonce")
	if nonce == "" {
		if nonce, err = id.New("n"); err != nil {
			return "", fmt.Errorf("%s: unable to generate nonce: %w", op, err)
		}
		params.Set("nonce", nonce)
	}
	if err := s.transient.Set(ctx, transientNonceKey, nonce); err != nil {
		return "", fmt.Errorf("%s: unable to record nonce: %w", op, err)
	}
	if v := params.Get("max_age"); v != "" {
		if err := s.transient.Set(ctx, transientMaxAgeKey, v); err != nil {
			return "", fmt.Errorf("%s: unable to record max_age: %w", op, err)
		}
	}

	u := s.client.AuthorizeURL(state, params)
	s.logger.Debug("built login redirect", "response_mode", string(s.config.ResponseMode))
	return u, nil
}

// Exchange completes the authentication transaction.  It returns (false,
// nil) when no authorization code is bound to the session, so it can be
// called unconditionally on every request.  On success the received tokens
// are verified and persisted per the persistence policy, the user identity
// is resolved, and (true, nil) is returned.
func (s *Session) Exchange(ctx context.Context) (bool, error) {
	const op = "Session.Exchange"
	s.exchanged = true
	if s.callback == nil || s.callback.Code == "" {
		return false, nil
	}

	ok, err := s.state.Validate(ctx, s.callback.State)
	if err != nil {
		return false, fmt.Errorf("%s: unable to validate state: %w", op, err)
	}
	if !ok {
		return false, fmt.Errorf("%s: callback state was not accepted: %w", op, ErrStateValidation)
	}
	if len(s.user) > 0 {
		return false, fmt.Errorf("%s: %w", op, ErrAlreadyAuthenticated)
	}

	tok, err := s.client.Exchange(ctx, s.callback.Code, s.config.RedirectURI)
	if err != nil {
		return false, fmt.Errorf("%s: unable to exchange authorization code: %w", op, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return false, fmt.Errorf("%s: %w", op, ErrTokenExchange)
	}

	if err := s.setAccessToken(ctx, tok.AccessToken); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if tok.RefreshToken != "" {
		if err := s.setRefreshToken(ctx, tok.RefreshToken); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}
	if tok.IDToken != "" {
		claims, err := s.verifyIDToken(ctx, tok.IDToken)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		s.idTokenClaims = claims
		if err := s.setIDToken(ctx, tok.IDToken); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	var user map[string]interface{}
	switch {
	case s.config.SkipUserinfo:
		if s.idTokenClaims != nil {
			user = s.idTokenClaims.All
		}
	default:
		if user, err = s.client.UserInfo(ctx, tok.AccessToken); err != nil {
			return false, fmt.Errorf("%s: unable to fetch userinfo: %w", op, err)
		}
	}
	if len(user) > 0 {
		if err := s.setUser(ctx, user); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}
	s.logger.Debug("completed authentication", "user_present", len(user) > 0)
	return true, nil
}

// verifyIDToken assembles the verification parameters for raw and delegates
// to the verifier.  The nonce and max_age are consumed from the transient
// store and deleted immediately, regardless of the verification outcome.
func (s *Session) verifyIDToken(ctx context.Context, raw provider.IDToken) (*idtoken.Claims, error) {
	const op = "Session.verifyIDToken"
	maxAgeVal, _, err := store.GetDelete(ctx, s.transient, transientMaxAgeKey)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to consume max_age: %w", op, err)
	}
	nonce, ok, err := store.GetDelete(ctx, s.transient, transientNonceKey)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to consume nonce: %w", op, err)
	}
	if !ok || nonce == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingNonce)
	}

	opts := idtoken.VerifyOpts{
		Leeway: s.config.Leeway,
		MaxAge: s.config.MaxAge,
		Nonce:  nonce,
	}
	if maxAgeVal != "" {
		secs, err := strconv.ParseInt(maxAgeVal, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: stored max_age %q is not a number: %w", op, maxAgeVal, ErrInvalidParameter)
		}
		opts.MaxAge = time.Duration(secs) * time.Second
	}
	claims, err := s.verifier.Verify(ctx, string(raw), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// Renew trades the held refresh token for new tokens.  Both an access token
// and a refresh token must already be held in memory.  The renewed id_token
// is re-verified, but without nonce or max_age checks since no new login
// transaction is involved.  Any extra form values are sent with the grant.
func (s *Session) Renew(ctx context.Context, extra url.Values) error {
	const op = "Session.Renew"
	if s.accessToken == "" || s.refreshToken == "" {
		return fmt.Errorf("%s: %w", op, ErrRenewalPrecondition)
	}
	tok, err := s.client.Refresh(ctx, s.refreshToken, extra)
	if err != nil {
		return fmt.Errorf("%s: unable to refresh tokens: %w", op, err)
	}
	if tok == nil || tok.AccessToken == "" || tok.IDToken == "" {
		return fmt.Errorf("%s: %w", op, ErrRenewalResponse)
	}
	claims, err := s.verifier.Verify(ctx, string(tok.IDToken), idtoken.VerifyOpts{Leeway: s.config.Leeway})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.setAccessToken(ctx, tok.AccessToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.idTokenClaims = claims
	if err := s.setIDToken(ctx, tok.IDToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tok.RefreshToken != "" { // rotated by the provider
		if err := s.setRefreshToken(ctx, tok.RefreshToken); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	s.logger.Debug("renewed tokens")
	return nil
}

// Logout deletes every persistable kind from the durable store, not just the
// currently enabled ones, and clears the in-memory identity state.  It is
// idempotent.
func (s *Session) Logout(ctx context.Context) error {
	const op = "Session.Logout"
	var errs *multierror.Error
	for _, kind := range AllPersistKinds() {
		if err := s.durable.Delete(ctx, string(kind)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: unable to delete %s: %w", op, kind, err))
		}
	}
	s.user = nil
	s.accessToken = ""
	s.idToken = ""
	s.refreshToken = ""
	s.idTokenClaims = nil
	return errs.ErrorOrNil()
}

// EnsureAuthenticated performs the lazy exchange behind the accessors: if
// Exchange has not run for this session it runs now, which may perform
// network I/O and store writes.  It is a no-op when Exchange already ran or
// no callback is bound.
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	if s.exchanged {
		return nil
	}
	_, err := s.Exchange(ctx)
	return err
}

// User returns the user identity claims, triggering EnsureAuthenticated when
// none are held.  The result may be nil when there was nothing to exchange.
func (s *Session) User(ctx context.Context) (map[string]interface{}, error) {
	if len(s.user) == 0 {
		if err := s.EnsureAuthenticated(ctx); err != nil {
			return nil, err
		}
	}
	return s.user, nil
}

// AccessToken returns the held access token, triggering EnsureAuthenticated
// when none is held.
func (s *Session) AccessToken(ctx context.Context) (provider.AccessToken, error) {
	if s.accessToken == "" {
		if err := s.EnsureAuthenticated(ctx); err != nil {
			return "", err
		}
	}
	return s.accessToken, nil
}

// IDToken returns the held id_token, triggering EnsureAuthenticated when
// none is held.
func (s *Session) IDToken(ctx context.Context) (provider.IDToken, error) {
	if s.idToken == "" {
		if err := s.EnsureAuthenticated(ctx); err != nil {
			return "", err
		}
	}
	return s.idToken, nil
}

// RefreshToken returns the held refresh token, triggering
// EnsureAuthenticated when none is held.
func (s *Session) RefreshToken(ctx context.Context) (provider.RefreshToken, error) {
	if s.refreshToken == "" {
		if err := s.EnsureAuthenticated(ctx); err != nil {
			return "", err
		}
	}
	return s.refreshToken, nil
}

// IDTokenClaims returns the decoded claims of the most recently verified
// id_token, or nil.  The decoded form is never persisted, only the compact
// token string is.
func (s *Session) IDTokenClaims() *idtoken.Claims {
	return s.idTokenClaims
}

// setUser keeps claims in memory and persists them as JSON when the policy
// allows.
func (s *Session) setUser(ctx context.Context, claims map[string]interface{}) error {
	const op = "Session.setUser"
	s.user = claims
	if !s.config.policy.Enabled(PersistUser) {
		return nil
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("%s: unable to encode user claims: %w", op, err)
	}
	if err := s.durable.Set(ctx, string(PersistUser), string(b)); err != nil {
		return fmt.Errorf("%s: unable to persist user: %w", op, err)
	}
	return nil
}

func (s *Session) setAccessToken(ctx context.Context, t provider.AccessToken) error {
	const op = "Session.setAccessToken"
	s.accessToken = t
	if !s.config.policy.Enabled(PersistAccessToken) {
		return nil
	}
	if err := s.durable.Set(ctx, string(PersistAccessToken), string(t)); err != nil {
		return fmt.Errorf("%s: unable to persist access token: %w", op, err)
	}
	return nil
}

func (s *Session) setIDToken(ctx context.Context, t provider.IDToken) error {
	const op = "Session.setIDToken"
	s.idToken = t
	if !s.config.policy.Enabled(PersistIDToken) {
		return nil
	}
	if err := s.durable.Set(ctx, string(PersistIDToken), string(t)); err != nil {
		return fmt.Errorf("%s: unable to persist id_token: %w", op, err)
	}
	return nil
}

func (s *Session) setRefreshToken(ctx context.Context, t provider.RefreshToken) error {
	const op = "Session.setRefreshToken"
	s.refreshToken = t
	if !s.config.policy.Enabled(PersistRefreshToken) {
		return nil
	}
	if err := s.durable.Set(ctx, string(PersistRefreshToken), string(t)); err != nil {
		return fmt.Errorf("%s: unable to persist refresh token: %w", op, err)
	}
	return nil
}

// hydrate loads previously persisted identity state from the durable store
// into memory, so a new Session resumes the session a prior request
// established.  Leftovers from an earlier, wider policy are loaded too; they
// are only ever re-written under the current policy.
func (s *Session) hydrate(ctx context.Context) error {
	const op = "Session.hydrate"
	if v, ok, err := s.durable.Get(ctx, string(PersistUser)); err != nil {
		return fmt.Errorf("%s: unable to read persisted user: %w", op, err)
	} else if ok {
		var u map[string]interface{}
		if err := json.Unmarshal([]byte(v), &u); err != nil {
			return fmt.Errorf("%s: persisted user is corrupt: %w", op, err)
		}
		s.user = u
	}
	if v, ok, err := s.durable.Get(ctx, string(PersistAccessToken)); err != nil {
		return fmt.Errorf("%s: unable to read persisted access token: %w", op, err)
	} else if ok {
		s.accessToken = provider.AccessToken(v)
	}
	if v, ok, err := s.durable.Get(ctx, string(PersistIDToken)); err != nil {
		return fmt.Errorf("%s: unable to read persisted id_token: %w", op, err)
	} else if ok {
		s.idToken = provider.IDToken(v)
	}
	if v, ok, err := s.durable.Get(ctx, string(PersistRefreshToken)); err != nil {
		return fmt.Errorf("%s: unable to read persisted refresh token: %w", op, err)
	} else if ok {
		s.refreshToken = provider.RefreshToken(v)
	}
	return nil
}
