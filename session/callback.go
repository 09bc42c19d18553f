package session

import (
	"fmt"
	"net/http"
)

// Callback carries the authorization code and state read from the provider's
// redirect back to the application.  No other inbound fields are consumed.
type Callback struct {
	Code  string
	State string
}

// CallbackFromRequest reads the code and state from r according to the
// response mode: the URL query string for ResponseModeQuery, the submitted
// form body for ResponseModeFormPost.
func CallbackFromRequest(r *http.Request, mode ResponseMode) (Callback, error) {
	const op = "session.CallbackFromRequest"
	if r == nil {
		return Callback{}, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	switch mode {
	case ResponseModeFormPost:
		if err := r.ParseForm(); err != nil {
			return Callback{}, fmt.Errorf("%s: unable to parse form body: %w", op, err)
		}
		return Callback{
			Code:  r.PostFormValue("code"),
			State: r.PostFormValue("state"),
		}, nil
	case ResponseModeQuery:
		q := r.URL.Query()
		return Callback{
			Code:  q.Get("code"),
			State: q.Get("state"),
		}, nil
	default:
		return Callback{}, fmt.Errorf("%s: unsupported response mode %q: %w", op, mode, ErrInvalidParameter)
	}
}
