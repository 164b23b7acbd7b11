// Package tokenware is the request-level authentication gate. It extracts a
// bearer token, verifies it, and binds the resulting principal to the request
// for the rest of processing. The gate itself is advisory when Optional is
// set: enforcement belongs to the permission check each protected operation
// runs.
package tokenware

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup     = "header:" + router.HeaderAuthorization
	ErrTokenMissing        = errors.New("missing bearer token")
	ErrVerifierUnavailable = errors.New("token verifier is required")
)

// Verifier resolves a raw bearer token to a user id without import cycles.
// This mirrors the TokenVerifier interface from the memberauth package.
type Verifier interface {
	Verify(ctx context.Context, token string) (int64, error)
}

// ValidationListener is invoked after a token has been verified but before
// the principal is bound.
type ValidationListener func(ctx router.Context, userID int64) error

// ContextEnricher propagates the verified user id to the standard Go context.
// The memberauth package supplies one that binds its Principal type.
type ContextEnricher func(c context.Context, userID int64) context.Context

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler

	// Verifier is required for token verification
	Verifier Verifier

	ContextKey  string
	TokenLookup string
	AuthScheme  string

	// Optional makes the gate advisory: requests without a valid token
	// proceed unauthenticated instead of being rejected here. Protected
	// operations still fail later at their permission check.
	Optional bool

	// ContextEnricher is called after successful verification to propagate
	// the principal to the standard Go context.
	ContextEnricher ContextEnricher

	// ValidationListeners are invoked after verification succeeds. Use them
	// to emit events or perform bookkeeping before the request proceeds.
	ValidationListeners []ValidationListener
}

func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			// A principal bound by another mechanism wins; the gate no-ops.
			if existing := ctx.Locals(cfg.ContextKey); existing != nil {
				return cfg.SuccessHandler(ctx)
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil || raw == "" {
				if cfg.Optional {
					return ctx.Next()
				}
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			userID, err := cfg.Verifier.Verify(ctx.Context(), raw)
			if err != nil {
				if cfg.Optional {
					return ctx.Next()
				}
				return cfg.ErrorHandler(ctx, err)
			}

			if err := cfg.runValidationListeners(ctx, userID); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, userID)

			if cfg.ContextEnricher != nil {
				stdCtx := ctx.Context()
				ctx.SetContext(cfg.ContextEnricher(stdCtx, userID))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// PrincipalFromContext reads the user id the gate bound to the router
// context. It returns false when the request is unauthenticated.
func PrincipalFromContext(ctx router.Context, key string) (int64, bool) {
	if key == "" {
		key = "principal"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return 0, false
	}
	userID, ok := raw.(int64)
	if !ok || userID <= 0 {
		return 0, false
	}
	return userID, true
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if errors.Is(err, ErrTokenMissing) {
				return c.Status(router.StatusUnauthorized).SendString(ErrTokenMissing.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.Verifier == nil {
		panic("MEMBERAUTH: token middleware configuration: Verifier is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "principal"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []TokenExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(ctx router.Context, userID int64) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

// GetExtractors parses a lookup spec of the form
// "header:Authorization,cookie:token,query:access_token" into extractors.
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, tokenFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

type TokenExtractor func(c router.Context) (string, error)

// tokenFromHeader returns a function that extracts the token from the request
// header, matching the auth scheme keyword case-insensitively.
func tokenFromHeader(header string, authScheme string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		authScheme = strings.TrimSpace(authScheme)
		l := len(authScheme)
		if l == 0 {
			return strings.TrimSpace(a), nil
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissing
	}
}

// tokenFromQuery returns a function that extracts the token from the query string.
func tokenFromQuery(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

// tokenFromParam returns a function that extracts the token from the url param string.
func tokenFromParam(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

// tokenFromCookie returns a function that extracts the token from the named cookie.
func tokenFromCookie(name string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}
