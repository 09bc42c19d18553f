// Package session orchestrates the client side of an OAuth2 authorization
// code flow with OpenID Connect identity verification.  A Session builds the
// login redirect (issuing single-use state and nonce values), completes the
// code-for-token exchange exactly once, verifies the returned id_token,
// renews tokens via a refresh token, and persists session state across
// requests according to a construction-time persistence policy.
//
// A Session is intended to be created fresh per inbound request.  It performs
// no background work; all operations are synchronous and any remote I/O is
// bounded by the caller's context.
package session
