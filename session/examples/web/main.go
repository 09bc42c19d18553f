// A small web app demonstrating the full login round trip: /login sends the
// user to the provider, /callback completes the exchange, / shows who is
// logged in, and /logout clears everything.  Session data is kept in cookies
// so the app itself stays stateless.
//
// Configuration comes from AUTHFLOW_* environment variables, optionally
// loaded from a .env file:
//
//	AUTHFLOW_DOMAIN=tenant.example.com
//	AUTHFLOW_CLIENT_ID=...
//	AUTHFLOW_CLIENT_SECRET=...
//	AUTHFLOW_REDIRECT_URI=http://localhost:8000/callback
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"github.com/oidcware/authflow/session"
	"github.com/oidcware/authflow/store"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "listen address")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "unable to load .env: %s\n", err)
		return
	}

	logger := hclog.New(&hclog.LoggerOptions{Name: "authflow-web"})

	// validate the environment once up front; per-request configs reuse it
	if _, err := session.ConfigFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %s\n", err)
		return
	}

	app := &app{logger: logger}
	http.HandleFunc("/", app.home)
	http.HandleFunc("/login", app.login)
	http.HandleFunc("/callback", app.callback)
	http.HandleFunc("/logout", app.logout)

	logger.Info("listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "server closed with error: %s\n", err)
	}
}

type app struct {
	logger hclog.Logger
}

// newSession builds a per-request Session backed by cookie stores.  The
// durable cookies carry the user between requests; the transient ones only
// need to survive the redirect round trip.
func (a *app) newSession(w http.ResponseWriter, r *http.Request) (*session.Session, *session.Config, error) {
	durable := store.NewCookie(r, w,
		store.WithTTL(24*time.Hour),
		store.WithInsecureCookies()) // local demo over plain http
	transient := store.NewCookie(r, w,
		store.WithPrefix("authflow_txn_"),
		store.WithTTL(10*time.Minute),
		store.WithInsecureCookies())
	c, err := session.ConfigFromEnv(
		session.WithStores(durable, transient),
		session.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	s, err := session.New(r.Context(), c)
	if err != nil {
		return nil, nil, err
	}
	return s, c, nil
}

func (a *app) login(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.newSession(w, r)
	if err != nil {
		a.fail(w, err)
		return
	}
	u, err := s.AuthURL(r.Context(), nil)
	if err != nil {
		a.fail(w, err)
		return
	}
	http.Redirect(w, r, u, http.StatusFound)
}

func (a *app) callback(w http.ResponseWriter, r *http.Request) {
	s, c, err := a.newSession(w, r)
	if err != nil {
		a.fail(w, err)
		return
	}
	cb, err := session.CallbackFromRequest(r, c.ResponseMode)
	if err != nil {
		a.fail(w, err)
		return
	}
	s.SetCallback(cb)
	completed, err := s.Exchange(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	if !completed {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *app) logout(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.newSession(w, r)
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := s.Logout(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *app) home(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.newSession(w, r)
	if err != nil {
		a.fail(w, err)
		return
	}
	user, err := s.User(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	if len(user) == 0 {
		fmt.Fprint(w, `<html><body>Not logged in. <a href="/login">Log in</a></body></html>`)
		return
	}
	b, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		a.fail(w, err)
		return
	}
	fmt.Fprintf(w, `<html><body><pre>%s</pre><a href="/logout">Log out</a></body></html>`, b)
}

func (a *app) fail(w http.ResponseWriter, err error) {
	a.logger.Error("request failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
