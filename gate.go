package memberauth

import (
	"context"
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-memberauth/middleware/tokenware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteGate wires the tokenware middleware into a host's router. Authenticate
// runs once per inbound request before protected handlers; ProtectedRoute is
// the enforcing variant for route groups that require a principal.
type RouteGate struct {
	verifier         TokenVerifier
	cfg              Config
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

// NewRouteGate returns a gate for the given verifier. A nil cfg falls back to
// library defaults.
func NewRouteGate(verifier TokenVerifier, cfg Config) (*RouteGate, error) {
	if verifier == nil {
		return nil, errors.New("route gate requires a token verifier", errors.CategoryBadInput)
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}

	g := &RouteGate{
		verifier: verifier,
		cfg:      cfg,
		Logger:   defLogger{},
	}

	g.ErrorHandler = g.defaultErrHandler
	g.AuthErrorHandler = g.defaultAuthErrHandler

	return g, nil
}

// Authenticate is the advisory gate: it binds a principal when a valid bearer
// token is present and lets the request proceed unauthenticated otherwise.
// Enforcement happens at CheckPermission inside each protected operation.
func (g *RouteGate) Authenticate() router.MiddlewareFunc {
	return tokenware.New(tokenware.Config{
		Verifier:        g.verifier,
		Optional:        true,
		ContextKey:      g.cfg.GetContextKey(),
		TokenLookup:     g.cfg.GetTokenLookup(),
		AuthScheme:      g.cfg.GetAuthScheme(),
		ContextEnricher: bindBearerPrincipal,
	})
}

// ProtectedRoute rejects requests without a valid token before the handler
// runs. Failures collapse to a single generic rejection.
func (g *RouteGate) ProtectedRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = g.MakeAuthErrorHandler(false)
	}
	return tokenware.New(tokenware.Config{
		Verifier:        g.verifier,
		ErrorHandler:    errorHandler,
		ContextKey:      g.cfg.GetContextKey(),
		TokenLookup:     g.cfg.GetTokenLookup(),
		AuthScheme:      g.cfg.GetAuthScheme(),
		ContextEnricher: bindBearerPrincipal,
	})
}

// CheckPermission resolves the request's principal from the router context,
// falling back to the standard context binding. Protected operations must
// route every authorization decision through here so there is exactly one
// auth path.
func (g *RouteGate) CheckPermission(ctx router.Context) (*Principal, error) {
	if userID, ok := tokenware.PrincipalFromContext(ctx, g.cfg.GetContextKey()); ok {
		return &Principal{UserID: userID, Source: PrincipalSourceBearer}, nil
	}
	return CheckPermission(ctx.Context())
}

// MakeAuthErrorHandler builds the error handler protected routes use. With
// optional set, failures log and proceed; otherwise the caller receives the
// single generic invalid-token rejection.
func (g *RouteGate) MakeAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			g.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return g.AuthErrorHandler(ctx, richErr)
	}
}

func (g *RouteGate) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	g.Logger.Info(
		"Authentication error",
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	// One generic rejection regardless of why verification failed.
	return c.Status(http.StatusUnauthorized).SendString("Invalid or expired token")
}

func (g *RouteGate) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	g.Logger.Error(
		"Gate error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return g.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).SendString(http.StatusText(richErr.Code))
	}
}

func bindBearerPrincipal(ctx context.Context, userID int64) context.Context {
	return WithPrincipal(ctx, &Principal{UserID: userID, Source: PrincipalSourceBearer})
}
