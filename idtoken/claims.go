package idtoken

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2/jwt"
)

// Claims are the decoded payload claims of a verified id_token.  The well
// known claims are lifted into typed fields; All carries every claim the
// token held, keyed by claim name.
type Claims struct {
	Issuer   string
	Subject  string
	Audience []string
	Expiry   time.Time
	IssuedAt time.Time
	AuthTime time.Time // zero when the token carries no auth_time
	Nonce    string

	All map[string]interface{}
}

// parseClaims decodes a raw payload into Claims.
func parseClaims(payload []byte) (*Claims, error) {
	var std jwt.Claims
	if err := json.Unmarshal(payload, &std); err != nil {
		return nil, fmt.Errorf("unable to parse registered claims: %w", err)
	}
	var extra struct {
		Nonce    string           `json:"nonce"`
		AuthTime *jwt.NumericDate `json:"auth_time"`
	}
	if err := json.Unmarshal(payload, &extra); err != nil {
		return nil, fmt.Errorf("unable to parse extra claims: %w", err)
	}
	all := map[string]interface{}{}
	if err := json.Unmarshal(payload, &all); err != nil {
		return nil, fmt.Errorf("unable to parse claims: %w", err)
	}

	c := &Claims{
		Issuer:   std.Issuer,
		Subject:  std.Subject,
		Audience: []string(std.Audience),
		Nonce:    extra.Nonce,
		All:      all,
	}
	if std.Expiry != nil {
		c.Expiry = std.Expiry.Time()
	}
	if std.IssuedAt != nil {
		c.IssuedAt = std.IssuedAt.Time()
	}
	if extra.AuthTime != nil {
		c.AuthTime = extra.AuthTime.Time()
	}
	return c, nil
}

func (c *Claims) hasAudience(aud string) bool {
	for _, a := range c.Audience {
		if a == aud {
			return true
		}
	}
	return false
}
