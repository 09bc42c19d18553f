package session

import (
	"errors"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrConfiguration is returned at construction for a missing required
	// field or an unsupported algorithm or response mode.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrStateValidation is returned when the callback state is missing,
	// unknown, or already consumed.  The caller can recover by
	// re-initiating login.
	ErrStateValidation = errors.New("state validation failed")

	// ErrAlreadyAuthenticated guards against a double exchange while a
	// user identity is already held.
	ErrAlreadyAuthenticated = errors.New("user is already authenticated")

	// ErrTokenExchange is returned when the provider's exchange response
	// carries no access token.
	ErrTokenExchange = errors.New("token exchange returned no access token")

	// ErrRenewalPrecondition is returned when renewal is attempted without
	// both an access token and a refresh token in memory.
	ErrRenewalPrecondition = errors.New("renewal requires an access token and a refresh token")

	// ErrRenewalResponse is returned when the refresh response lacks a new
	// access token or id_token.
	ErrRenewalResponse = errors.New("invalid renewal response")

	// ErrMissingNonce is returned when no nonce is found in the transient
	// store during id_token verification: either the login never went
	// through AuthURL, or the transaction was replayed or expired.
	ErrMissingNonce = errors.New("no nonce found for this transaction")
)
