package store

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// DefaultCookiePrefix is the name prefix for cookies written by a Cookie
// store.
const DefaultCookiePrefix = "authflow_"

// Cookie is a Store backed by HTTP cookies.  Reads consult values written
// during the current request first, then the cookies on the inbound request.
// Writes and deletes are recorded as Set-Cookie headers on the bound
// response writer, so they become visible to the browser on the next
// request.
//
// A Cookie store is bound to a single request/response pair and is therefore
// inherently request scoped; the single-use consume race discussed on
// Consumer cannot arise for it.
type Cookie struct {
	r        *http.Request
	w        http.ResponseWriter
	prefix   string
	ttl      time.Duration
	insecure bool

	// pending reflects writes and deletes from this request, so a read
	// after a write observes the new value before the browser round trip.
	pending map[string]*string
}

var _ Store = (*Cookie)(nil)

// NewCookie creates a cookie store bound to the given request and response.
// Supported options: WithPrefix, WithTTL, WithInsecureCookies
func NewCookie(r *http.Request, w http.ResponseWriter, opt ...Option) *Cookie {
	opts := getCookieOpts(opt...)
	return &Cookie{
		r:        r,
		w:        w,
		prefix:   opts.withPrefix,
		ttl:      opts.withTTL,
		insecure: opts.withInsecure,
		pending:  map[string]*string{},
	}
}

// Get implements Store.Get.
func (c *Cookie) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok := c.pending[key]; ok {
		if v == nil { // deleted during this request
			return "", false, nil
		}
		return *v, true, nil
	}
	ck, err := c.r.Cookie(c.prefix + key)
	if err != nil { // only http.ErrNoCookie is possible here
		return "", false, nil
	}
	v, err := url.QueryUnescape(ck.Value)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Store.Set.
func (c *Cookie) Set(ctx context.Context, key string, value string) error {
	c.pending[key] = &value
	http.SetCookie(c.w, c.cookie(key, url.QueryEscape(value), c.ttl))
	return nil
}

// Delete implements Store.Delete by writing an expired cookie.
func (c *Cookie) Delete(ctx context.Context, key string) error {
	c.pending[key] = nil
	ck := c.cookie(key, "", 0)
	ck.MaxAge = -1
	http.SetCookie(c.w, ck)
	return nil
}

func (c *Cookie) cookie(key, value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     c.prefix + key,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !c.insecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		ck.MaxAge = int(ttl / time.Second)
	}
	return ck
}

// cookieOptions is the set of available options for Cookie
type cookieOptions struct {
	withPrefix   string
	withTTL      time.Duration
	withInsecure bool
}

func cookieDefaults() cookieOptions {
	return cookieOptions{
		withPrefix: DefaultCookiePrefix,
	}
}

// getCookieOpts gets the defaults and applies the opt overrides passed in.
func getCookieOpts(opt ...Option) cookieOptions {
	opts := cookieDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
