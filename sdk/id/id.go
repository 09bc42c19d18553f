package id

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// New generates an opaque random id with an optional prefix.  The id
// generated is unpredictable and suitable for use as a state or nonce
// parameter.
func New(optionalPrefix string) (string, error) {
	data, err := uuid.GenerateRandomBytes(20)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(data)
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
