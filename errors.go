package memberauth

import (
	stderrors "errors"

	"github.com/goliatone/go-errors"
)

// ErrInvalidToken is the single wire-visible authentication failure. Malformed
// tokens, unknown selectors, expired records, and digest mismatches all
// collapse into it so callers cannot distinguish which credential half was
// wrong; the distinguishing detail goes to the log sink only.
var ErrInvalidToken = errors.New("invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrNoPrincipal is returned by CheckPermission when request processing
// reaches a protected operation without an authenticated principal.
var ErrNoPrincipal = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeNoPrincipal).
	WithCode(errors.CodeUnauthorized)

const (
	TextCodeInvalidToken = "INVALID_TOKEN"
	TextCodeNoPrincipal  = "AUTH_REQUIRED"
)

// ErrMetadataNotFound is the sentinel stores return when a metadata key is
// absent for a user.
var ErrMetadataNotFound = stderrors.New("metadata key not found")

// ErrProviderUnavailable is the error a short-circuit membership query
// reports when no registered provider is currently available. It is not part
// of the aggregation path: unavailable providers are silently skipped there.
var ErrProviderUnavailable = stderrors.New("no membership provider available")

// IsInvalidTokenError checks whether err collapses to the generic
// authentication failure.
func IsInvalidTokenError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrInvalidToken) {
		return true
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeInvalidToken
	}
	return false
}

// IsMetadataNotFound checks for the store absent-key sentinel.
func IsMetadataNotFound(err error) bool {
	return stderrors.Is(err, ErrMetadataNotFound)
}

// invalidToken clones the wire error and records the log-only reason as
// metadata so activity sinks and structured logs can tell expiry from
// tampering without leaking the distinction to callers.
func invalidToken(reason string, source error) error {
	clone := ErrInvalidToken.Clone()
	clone.Source = source
	return clone.WithMetadata(map[string]any{
		"reason": reason,
	})
}
