package session

import (
	"context"
	"fmt"

	"github.com/oidcware/authflow/sdk/id"
	"github.com/oidcware/authflow/store"
)

// transientStateKey is the fixed transient store key holding the currently
// expected state value.
const transientStateKey = "state"

// StateHandler issues and validates the opaque CSRF-protection state
// parameter.  Implementations decide where (and whether) the expected value
// is recorded.
type StateHandler interface {
	// Issue returns a new unpredictable value and records it as the
	// currently expected one.
	Issue(ctx context.Context) (string, error)

	// Store records an externally supplied value as the currently
	// expected one, for callers that pre-generate state.
	Store(ctx context.Context, value string) error

	// Validate reports whether value matches the currently expected one.
	// The expected value is cleared regardless of the outcome, so a
	// second call with the same value fails.
	Validate(ctx context.Context, value string) (bool, error)
}

// TransientStateHandler records the expected state in a transient store under
// a fixed key and validates by single-use exact match.
type TransientStateHandler struct {
	store store.Store
}

var _ StateHandler = (*TransientStateHandler)(nil)

// NewTransientStateHandler creates a handler backed by s.
func NewTransientStateHandler(s store.Store) (*TransientStateHandler, error) {
	const op = "session.NewTransientStateHandler"
	if s == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrNilParameter)
	}
	return &TransientStateHandler{store: s}, nil
}

// Issue implements StateHandler.Issue.
func (h *TransientStateHandler) Issue(ctx context.Context) (string, error) {
	const op = "TransientStateHandler.Issue"
	v, err := id.New("st")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate state: %w", op, err)
	}
	if err := h.store.Set(ctx, transientStateKey, v); err != nil {
		return "", fmt.Errorf("%s: unable to record state: %w", op, err)
	}
	return v, nil
}

// Store implements StateHandler.Store.
func (h *TransientStateHandler) Store(ctx context.Context, value string) error {
	const op = "TransientStateHandler.Store"
	if value == "" {
		return fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	if err := h.store.Set(ctx, transientStateKey, value); err != nil {
		return fmt.Errorf("%s: unable to record state: %w", op, err)
	}
	return nil
}

// Validate implements StateHandler.Validate.  The expected value is consumed
// even when the comparison fails.
func (h *TransientStateHandler) Validate(ctx context.Context, value string) (bool, error) {
	const op = "TransientStateHandler.Validate"
	expected, ok, err := store.GetDelete(ctx, h.store, transientStateKey)
	if err != nil {
		return false, fmt.Errorf("%s: unable to read expected state: %w", op, err)
	}
	if !ok || value == "" {
		return false, nil
	}
	return expected == value, nil
}

// PassthroughStateHandler issues values without recording them and accepts
// any callback state.  Use only when the caller handles CSRF protection
// itself, or accepts the risk.
type PassthroughStateHandler struct{}

var _ StateHandler = (*PassthroughStateHandler)(nil)

// Issue implements StateHandler.Issue without persisting the value.
func (PassthroughStateHandler) Issue(ctx context.Context) (string, error) {
	const op = "PassthroughStateHandler.Issue"
	v, err := id.New("st")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate state: %w", op, err)
	}
	return v, nil
}

// Store implements StateHandler.Store as a no-op.
func (PassthroughStateHandler) Store(ctx context.Context, value string) error { return nil }

// Validate implements StateHandler.Validate and always succeeds.
func (PassthroughStateHandler) Validate(ctx context.Context, value string) (bool, error) {
	return true, nil
}
