// Package provider implements the provider-facing network calls of the
// authorization code flow: building the authorize URL, exchanging a code for
// tokens, refreshing tokens, and fetching userinfo claims.  The endpoints are
// derived from the provider domain, so no discovery round trip is needed.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	sdkhttp "github.com/oidcware/authflow/sdk/http"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
)

// Client is the contract the session orchestrator needs from a provider.
type Client interface {
	// AuthorizeURL returns the fully formed authorize URL carrying the
	// given state and additional query parameters.  Empty parameter values
	// are dropped.
	AuthorizeURL(state string, params url.Values) string

	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string, redirectURI string) (*Token, error)

	// Refresh trades a refresh token for new tokens.  Any extra form
	// values are sent along with the grant.
	Refresh(ctx context.Context, refreshToken RefreshToken, extra url.Values) (*Token, error)

	// UserInfo fetches the userinfo claims for the given access token.
	UserInfo(ctx context.Context, accessToken AccessToken) (map[string]interface{}, error)
}

// AuthCodeClient implements Client against a provider's domain-derived
// endpoints: https://{domain}/authorize, https://{domain}/oauth/token and
// https://{domain}/userinfo.
type AuthCodeClient struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	userInfoURL  string
	client       *http.Client
}

var _ Client = (*AuthCodeClient)(nil)

// NewAuthCodeClient creates a client for the given provider domain.
// Supported options: WithHTTPClient, WithProviderCA, WithEndpoints
func NewAuthCodeClient(domain string, clientID string, clientSecret string, opt ...Option) (*AuthCodeClient, error) {
	const op = "provider.NewAuthCodeClient"
	opts := getClientOpts(opt...)
	if domain == "" && opts.withEndpoints == nil {
		return nil, fmt.Errorf("%s: domain is empty: %w", op, ErrInvalidParameter)
	}
	if clientID == "" {
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	c := &AuthCodeClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("https://%s/authorize", domain),
			TokenURL: fmt.Sprintf("https://%s/oauth/token", domain),
		},
		userInfoURL: fmt.Sprintf("https://%s/userinfo", domain),
		client:      opts.withHTTPClient,
	}
	if e := opts.withEndpoints; e != nil {
		c.endpoint = oauth2.Endpoint{AuthURL: e.authURL, TokenURL: e.tokenURL}
		c.userInfoURL = e.userInfoURL
	}
	if c.client == nil {
		client, err := sdkhttp.NewClient(opts.withProviderCA)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
		c.client = client
	}
	return c, nil
}

// AuthorizeURL implements Client.AuthorizeURL.  The given params override the
// values oauth2 would set on its own (response_type, scope, redirect_uri and
// so on); empty values are dropped.
func (c *AuthCodeClient) AuthorizeURL(state string, params url.Values) string {
	cfg := c.oauth2Config(params.Get("redirect_uri"))
	var authCodeOpts []oauth2.AuthCodeOption
	for k, vs := range params {
		if k == "redirect_uri" || len(vs) == 0 || vs[0] == "" {
			continue
		}
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam(k, vs[0]))
	}
	return cfg.AuthCodeURL(state, authCodeOpts...)
}

// Exchange implements Client.Exchange.
func (c *AuthCodeClient) Exchange(ctx context.Context, code string, redirectURI string) (*Token, error) {
	const op = "AuthCodeClient.Exchange"
	if code == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	cfg := c.oauth2Config(redirectURI)
	oauth2Token, err := cfg.Exchange(sdkhttp.ClientContext(ctx, c.client), code)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}
	t := &Token{
		AccessToken:  AccessToken(oauth2Token.AccessToken),
		RefreshToken: RefreshToken(oauth2Token.RefreshToken),
		Expiry:       oauth2Token.Expiry,
	}
	if idToken, ok := oauth2Token.Extra("id_token").(string); ok {
		t.IDToken = IDToken(idToken)
	}
	return t, nil
}

// Refresh implements Client.Refresh.  The refresh grant is sent as an
// explicit form POST because the oauth2 package's token source has no way to
// carry extra grant parameters.
func (c *AuthCodeClient) Refresh(ctx context.Context, refreshToken RefreshToken, extra url.Values) (*Token, error) {
	const op = "AuthCodeClient.Refresh"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	form := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			form.Add(k, v)
		}
	}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", string(refreshToken))
	form.Set("client_id", c.clientID)
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create refresh request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: refresh request failed: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read refresh response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: refresh request returned %s: %w", op, resp.Status, ErrInvalidParameter)
	}
	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: unable to parse refresh response: %w", op, err)
	}
	t := &Token{
		AccessToken:  AccessToken(payload.AccessToken),
		RefreshToken: RefreshToken(payload.RefreshToken),
		IDToken:      IDToken(payload.IDToken),
	}
	if payload.ExpiresIn > 0 {
		t.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return t, nil
}

// UserInfo implements Client.UserInfo.
func (c *AuthCodeClient) UserInfo(ctx context.Context, accessToken AccessToken) (map[string]interface{}, error) {
	const op = "AuthCodeClient.UserInfo"
	if accessToken == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create userinfo request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+string(accessToken))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: userinfo request failed: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read userinfo response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: userinfo request returned %s: %w", op, resp.Status, ErrInvalidParameter)
	}
	claims := map[string]interface{}{}
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("%s: unable to parse userinfo claims: %w", op, err)
	}
	return claims, nil
}

func (c *AuthCodeClient) oauth2Config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     c.endpoint,
	}
}

// clientOptions is the set of available options for AuthCodeClient
type clientOptions struct {
	withHTTPClient *http.Client
	withProviderCA string
	withEndpoints  *endpoints
}

type endpoints struct {
	authURL     string
	tokenURL    string
	userInfoURL string
}

func clientDefaults() clientOptions {
	return clientOptions{}
}

// getClientOpts gets the defaults and applies the opt overrides passed in.
func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
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

// WithHTTPClient provides an optional http client to use for provider
// requests, replacing the default pooled client.
func WithHTTPClient(client *http.Client) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withHTTPClient = client
		}
	}
}

// WithProviderCA provides an optional CA cert PEM to trust when sending
// requests to the provider.
func WithProviderCA(pem string) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withProviderCA = pem
		}
	}
}

// WithEndpoints overrides the domain-derived authorize, token and userinfo
// endpoints.  Intended for tests and providers with non-standard paths.
func WithEndpoints(authURL, tokenURL, userInfoURL string) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withEndpoints = &endpoints{authURL: authURL, tokenURL: tokenURL, userInfoURL: userInfoURL}
		}
	}
}
