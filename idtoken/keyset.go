package idtoken

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"gopkg.in/square/go-jose.v2"

	sdkhttp "github.com/oidcware/authflow/sdk/http"
)

// KeySet represents a set of keys that can be used to verify the signature of
// a compact signed token.  A KeySet is expected to be backed by a set of
// local or remote keys.
type KeySet interface {
	// VerifySignature parses the given token, verifies its signature, and
	// returns the raw payload.
	VerifySignature(ctx context.Context, token string) (payload []byte, err error)
}

// RemoteKeySet verifies signatures using keys fetched from a provider's
// published JWKS endpoint.  Fetched keys are cached for the life of the
// RemoteKeySet and refreshed when an unknown key id is seen.
type RemoteKeySet struct {
	remote oidc.KeySet
}

var _ KeySet = (*RemoteKeySet)(nil)

// NewRemoteKeySet returns a KeySet backed by the JWKS at jwksURL.  The
// optional client is used for key fetches; the given ctx bounds the lifetime
// of the key cache's background fetches.
func NewRemoteKeySet(ctx context.Context, jwksURL string, client *http.Client) (*RemoteKeySet, error) {
	if jwksURL == "" {
		return nil, errors.New("jwksURL must not be empty")
	}
	if client != nil {
		ctx = sdkhttp.ClientContext(ctx, client)
	}
	return &RemoteKeySet{
		remote: oidc.NewRemoteKeySet(ctx, jwksURL),
	}, nil
}

// VerifySignature parses the given token, verifies its signature using the
// remote JWKS keys, and returns the raw payload.  The token must be of the
// JWS compact serialization form.
func (k *RemoteKeySet) VerifySignature(ctx context.Context, token string) ([]byte, error) {
	payload, err := k.remote.VerifySignature(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("unable to verify signature against JWKS: %w", err)
	}
	return payload, nil
}

// StaticSymmetricKeySet verifies HS256 signatures using a shared secret.
type StaticSymmetricKeySet struct {
	key []byte
}

var _ KeySet = (*StaticSymmetricKeySet)(nil)

// NewStaticSymmetricKeySet returns a KeySet for HS256 tokens signed with the
// given shared secret.
func NewStaticSymmetricKeySet(key []byte) (*StaticSymmetricKeySet, error) {
	if len(key) == 0 {
		return nil, errors.New("symmetric key must not be empty")
	}
	return &StaticSymmetricKeySet{key: key}, nil
}

// VerifySignature parses the given token, verifies its HS256 signature with
// the shared secret, and returns the raw payload.
func (k *StaticSymmetricKeySet) VerifySignature(ctx context.Context, token string) ([]byte, error) {
	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("unable to parse signed token: %w", err)
	}
	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("token must have exactly one signature, got %d", len(jws.Signatures))
	}
	if alg := jws.Signatures[0].Header.Algorithm; alg != string(jose.HS256) {
		return nil, fmt.Errorf("token signed with %q, expected %q", alg, jose.HS256)
	}
	payload, err := jws.Verify(k.key)
	if err != nil {
		return nil, fmt.Errorf("unable to verify signature with shared secret: %w", err)
	}
	return payload, nil
}
