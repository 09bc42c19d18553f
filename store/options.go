package store

import "time"

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

// WithTTL provides an optional time-to-live for values.  A Memory store
// expires entries after the TTL; a Cookie store uses it for the cookie
// Max-Age.  Zero means no expiry.
func WithTTL(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *memoryOptions:
			v.withTTL = d
		case *cookieOptions:
			v.withTTL = d
		}
	}
}

// WithNow provides an optional time source, used to test expiry.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *memoryOptions:
			v.withNow = now
		}
	}
}

// WithPrefix provides an optional name prefix for the cookies written by a
// Cookie store.
func WithPrefix(prefix string) Option {
	return func(o interface{}) {
		if v, ok := o.(*cookieOptions); ok {
			v.withPrefix = prefix
		}
	}
}

// WithInsecureCookies disables the Secure attribute on written cookies, for
// local development over plain http.
func WithInsecureCookies() Option {
	return func(o interface{}) {
		if v, ok := o.(*cookieOptions); ok {
			v.withInsecure = true
		}
	}
}
