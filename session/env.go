package session

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/oidcware/authflow/idtoken"
)

// envConfig holds raw env values for session configuration.
type envConfig struct {
	Domain             string        `env:"AUTHFLOW_DOMAIN"`
	ClientID           string        `env:"AUTHFLOW_CLIENT_ID"`
	ClientSecret       string        `env:"AUTHFLOW_CLIENT_SECRET"`
	ClientSecretBase64 bool          `env:"AUTHFLOW_CLIENT_SECRET_BASE64"`
	RedirectURI        string        `env:"AUTHFLOW_REDIRECT_URI"`
	Audience           string        `env:"AUTHFLOW_AUDIENCE"`
	Scopes             []string      `env:"AUTHFLOW_SCOPES" envSeparator:" "`
	ResponseMode       string        `env:"AUTHFLOW_RESPONSE_MODE"`
	ResponseType       string        `env:"AUTHFLOW_RESPONSE_TYPE"`
	Alg                string        `env:"AUTHFLOW_ID_TOKEN_ALG"`
	Leeway             time.Duration `env:"AUTHFLOW_ID_TOKEN_LEEWAY"`
	MaxAge             time.Duration `env:"AUTHFLOW_MAX_AGE"`
	SkipUserinfo       bool          `env:"AUTHFLOW_SKIP_USERINFO"`
	ProviderCA         string        `env:"AUTHFLOW_PROVIDER_CA"`

	PersistUser         bool `env:"AUTHFLOW_PERSIST_USER" envDefault:"true"`
	PersistAccessToken  bool `env:"AUTHFLOW_PERSIST_ACCESS_TOKEN"`
	PersistIDToken      bool `env:"AUTHFLOW_PERSIST_ID_TOKEN"`
	PersistRefreshToken bool `env:"AUTHFLOW_PERSIST_REFRESH_TOKEN"`
}

// ConfigFromEnv builds a Config from AUTHFLOW_* environment variables.  The
// given options are applied after the environment, so callers can override
// it or supply what the environment cannot (stores, state handler, logger).
func ConfigFromEnv(opt ...Option) (*Config, error) {
	const op = "session.ConfigFromEnv"
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("%s: unable to parse environment: %w", op, err)
	}

	envOpts := []Option{
		WithPersistence(e.PersistUser, e.PersistAccessToken, e.PersistIDToken, e.PersistRefreshToken),
	}
	switch {
	case e.ClientSecret != "" && e.ClientSecretBase64:
		envOpts = append(envOpts, WithBase64ClientSecret(ClientSecret(e.ClientSecret)))
	case e.ClientSecret != "":
		envOpts = append(envOpts, WithClientSecret(ClientSecret(e.ClientSecret)))
	}
	if e.Audience != "" {
		envOpts = append(envOpts, WithAudience(e.Audience))
	}
	if len(e.Scopes) > 0 {
		envOpts = append(envOpts, WithScopes(e.Scopes...))
	}
	if e.ResponseMode != "" {
		envOpts = append(envOpts, WithResponseMode(ResponseMode(e.ResponseMode)))
	}
	if e.ResponseType != "" {
		envOpts = append(envOpts, WithResponseType(e.ResponseType))
	}
	if e.Alg != "" {
		envOpts = append(envOpts, WithAlg(idtoken.Alg(e.Alg)))
	}
	if e.Leeway > 0 {
		envOpts = append(envOpts, WithLeeway(e.Leeway))
	}
	if e.MaxAge > 0 {
		envOpts = append(envOpts, WithMaxAge(e.MaxAge))
	}
	if e.SkipUserinfo {
		envOpts = append(envOpts, WithSkipUserinfo())
	}
	if e.ProviderCA != "" {
		envOpts = append(envOpts, WithProviderCA(e.ProviderCA))
	}
	return NewConfig(e.Domain, e.ClientID, e.RedirectURI, append(envOpts, opt...)...)
}
