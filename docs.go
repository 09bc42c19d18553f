// authflow provides client-side orchestration of the OAuth2 authorization
// code flow with OpenID Connect identity verification: building the login
// redirect, completing the code-for-token exchange exactly once, verifying
// id_tokens, and persisting session state across requests.
//
// See README.md
package authflow
