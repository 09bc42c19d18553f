package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthCodeClient(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		domain    string
		clientID  string
		opt       []Option
		wantErr   bool
		wantIsErr error
	}{
		{
			name:     "valid",
			domain:   "t.example.com",
			clientID: "abc",
		},
		{
			name:      "missing-domain",
			clientID:  "abc",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "missing-client-id",
			domain:    "t.example.com",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:     "endpoints-replace-domain",
			clientID: "abc",
			opt:      []Option{WithEndpoints("http://a/auth", "http://a/token", "http://a/userinfo")},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require := require.New(t)
			got, err := NewAuthCodeClient(tt.domain, tt.clientID, "sec", tt.opt...)
			if tt.wantErr {
				require.Error(err)
				require.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			require.NotNil(got)
		})
	}
}

func TestAuthCodeClient_AuthorizeURL(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewAuthCodeClient("t.example.com", "abc", "sec")
	require.NoError(err)

	params := url.Values{}
	params.Set("redirect_uri", "https://app/cb")
	params.Set("scope", "openid profile email")
	params.Set("nonce", "n_123")
	params.Set("audience", "") // empty values are dropped

	got := c.AuthorizeURL("st_456", params)
	u, err := url.Parse(got)
	require.NoError(err)
	assert.Equal("t.example.com", u.Host)
	assert.Equal("/authorize", u.Path)

	q := u.Query()
	assert.Equal("code", q.Get("response_type"))
	assert.Equal("abc", q.Get("client_id"))
	assert.Equal("https://app/cb", q.Get("redirect_uri"))
	assert.Equal("openid profile email", q.Get("scope"))
	assert.Equal("n_123", q.Get("nonce"))
	assert.Equal("st_456", q.Get("state"))
	assert.False(q.Has("audience"))
}

func TestAuthCodeClient_Exchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require := require.New(t)
		require.NoError(r.ParseForm())
		require.Equal("test-code", r.PostFormValue("code"))
		require.Equal("authorization_code", r.PostFormValue("grant_type"))
		require.Equal("https://app/cb", r.PostFormValue("redirect_uri"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "at_1",
			"refresh_token": "rt_1",
			"id_token":      "idt_1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer ts.Close()

	c, err := NewAuthCodeClient("", "abc", "sec", WithEndpoints(ts.URL+"/authorize", ts.URL+"/oauth/token", ts.URL+"/userinfo"))
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tok, err := c.Exchange(ctx, "test-code", "https://app/cb")
		require.NoError(err)
		assert.Equal(AccessToken("at_1"), tok.AccessToken)
		assert.Equal(RefreshToken("rt_1"), tok.RefreshToken)
		assert.Equal(IDToken("idt_1"), tok.IDToken)
		assert.True(tok.Valid())
	})
	t.Run("empty-code", func(t *testing.T) {
		require := require.New(t)
		_, err := c.Exchange(ctx, "", "https://app/cb")
		require.Error(err)
		require.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestAuthCodeClient_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(r.ParseForm())
			require.Equal("refresh_token", r.PostFormValue("grant_type"))
			require.Equal("rt_1", r.PostFormValue("refresh_token"))
			require.Equal("abc", r.PostFormValue("client_id"))
			require.Equal("api://default", r.PostFormValue("audience"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "at_2",
				"id_token":     "idt_2",
				"expires_in":   600,
			})
		}))
		defer ts.Close()

		c, err := NewAuthCodeClient("", "abc", "sec", WithEndpoints(ts.URL+"/a", ts.URL+"/t", ts.URL+"/u"))
		require.NoError(err)

		tok, err := c.Refresh(ctx, "rt_1", url.Values{"audience": {"api://default"}})
		require.NoError(err)
		assert.Equal(AccessToken("at_2"), tok.AccessToken)
		assert.Equal(IDToken("idt_2"), tok.IDToken)
	})
	t.Run("provider-error-status", func(t *testing.T) {
		require := require.New(t)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusForbidden)
		}))
		defer ts.Close()

		c, err := NewAuthCodeClient("", "abc", "sec", WithEndpoints(ts.URL+"/a", ts.URL+"/t", ts.URL+"/u"))
		require.NoError(err)

		_, err = c.Refresh(ctx, "rt_1", nil)
		require.Error(err)
	})
	t.Run("empty-refresh-token", func(t *testing.T) {
		require := require.New(t)
		c, err := NewAuthCodeClient("t.example.com", "abc", "sec")
		require.NoError(err)
		_, err = c.Refresh(ctx, "", nil)
		require.Error(err)
		require.True(errors.Is(err, ErrInvalidParameter))
	})
}

func TestAuthCodeClient_UserInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require := require.New(t)
		require.Equal("Bearer at_1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":   "auth|123",
			"email": "alice@example.com",
		})
	}))
	defer ts.Close()

	c, err := NewAuthCodeClient("", "abc", "sec", WithEndpoints(ts.URL+"/a", ts.URL+"/t", ts.URL+"/userinfo"))
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		claims, err := c.UserInfo(ctx, "at_1")
		require.NoError(err)
		assert.Equal("auth|123", claims["sub"])
		assert.Equal("alice@example.com", claims["email"])
	})
	t.Run("empty-access-token", func(t *testing.T) {
		require := require.New(t)
		_, err := c.UserInfo(ctx, "")
		require.Error(err)
		require.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestToken_redaction(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal(RedactedAccessToken, AccessToken("secret").String())
	assert.Equal(RedactedRefreshToken, RefreshToken("secret").String())
	assert.Equal(RedactedIDToken, IDToken("secret").String())

	got, err := json.Marshal(IDToken("secret"))
	require.NoError(t, err)
	assert.JSONEq(`"`+RedactedIDToken+`"`, string(got))
}
