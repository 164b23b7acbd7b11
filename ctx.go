package memberauth

import (
	"context"

	"github.com/goliatone/go-errors"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// Principal is the authenticated user bound to a request after a successful
// token verification. Source names the mechanism that established it.
type Principal struct {
	UserID int64  `json:"user_id"`
	Source string `json:"source,omitempty"`
}

// PrincipalSourceBearer marks principals established from an opaque device
// token; PrincipalSourceExternal marks externally issued identity tokens.
const (
	PrincipalSourceBearer   = "bearer"
	PrincipalSourceExternal = "external"
)

// WithPrincipal binds the authenticated principal to the context. Once bound
// there is no transition back to unauthenticated within the request.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal established for this request.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey).(*Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// CheckPermission is the shared permission boundary every protected operation
// must call. It rejects with a single generic authentication error when no
// valid principal was established; the gate already logged why.
func CheckPermission(ctx context.Context) (*Principal, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrNoPrincipal
	}
	if principal.UserID <= 0 {
		return nil, errors.New("principal carries no user id", errors.CategoryAuth).
			WithTextCode(TextCodeNoPrincipal).
			WithCode(errors.CodeUnauthorized)
	}
	return principal, nil
}
