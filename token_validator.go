package memberauth

import "context"

// TokenVerifierFunc adapts a function into a TokenVerifier.
type TokenVerifierFunc func(ctx context.Context, token string) (int64, error)

// Verify satisfies the TokenVerifier interface.
func (f TokenVerifierFunc) Verify(ctx context.Context, token string) (int64, error) {
	if f == nil {
		return 0, ErrInvalidToken
	}
	return f(ctx, token)
}

// MultiVerifier tries verifiers in order until one succeeds. It treats the
// generic invalid-token failure as "try next" so an opaque device token
// engine can sit in front of an external identity-token verifier; any other
// error (e.g. a store failure) stops the chain.
type MultiVerifier struct {
	verifiers []TokenVerifier
}

// NewMultiVerifier filters nil verifiers and returns a composite verifier.
func NewMultiVerifier(verifiers ...TokenVerifier) *MultiVerifier {
	filtered := make([]TokenVerifier, 0, len(verifiers))
	for _, v := range verifiers {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiVerifier{verifiers: filtered}
}

// Verify satisfies the TokenVerifier interface.
func (m *MultiVerifier) Verify(ctx context.Context, token string) (int64, error) {
	var lastErr error
	for _, v := range m.verifiers {
		userID, err := v.Verify(ctx, token)
		if err == nil {
			return userID, nil
		}
		if IsInvalidTokenError(err) {
			lastErr = err
			continue
		}
		return 0, err
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, ErrInvalidToken
}
