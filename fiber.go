package memberauth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// FiberGate is the fiber-native authentication gate for hosts that mount the
// library directly on a fiber app instead of going through go-router. It is
// advisory: requests without a valid bearer token proceed unauthenticated and
// fail later at their permission check.
func FiberGate(verifier TokenVerifier, cfg Config) fiber.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	contextKey := cfg.GetContextKey()
	authScheme := cfg.GetAuthScheme()

	return func(c *fiber.Ctx) error {
		if c.Locals(contextKey) != nil {
			return c.Next()
		}

		raw, ok := bearerFromHeader(c.Get(fiber.HeaderAuthorization), authScheme)
		if !ok {
			return c.Next()
		}

		userID, err := verifier.Verify(c.UserContext(), raw)
		if err != nil {
			return c.Next()
		}

		principal := &Principal{UserID: userID, Source: PrincipalSourceBearer}
		c.Locals(contextKey, principal)
		c.SetUserContext(WithPrincipal(c.UserContext(), principal))
		return c.Next()
	}
}

// RequireFiberPrincipal guards a route group. Mount it after FiberGate; any
// request that reaches it without a principal gets the generic rejection.
func RequireFiberPrincipal(cfg Config) fiber.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	contextKey := cfg.GetContextKey()

	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromFiber(c, contextKey); !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
				"code":  TextCodeInvalidToken,
			})
		}
		return c.Next()
	}
}

// PrincipalFromFiber reads the principal the fiber gate bound to the request.
func PrincipalFromFiber(c *fiber.Ctx, key string) (*Principal, bool) {
	if key == "" {
		key = "principal"
	}
	raw := c.Locals(key)
	if raw == nil {
		return nil, false
	}
	principal, ok := raw.(*Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// bearerFromHeader matches the auth scheme keyword case-insensitively per the
// bearer header contract.
func bearerFromHeader(header, authScheme string) (string, bool) {
	authScheme = strings.TrimSpace(authScheme)
	if header == "" {
		return "", false
	}
	if authScheme == "" {
		return strings.TrimSpace(header), true
	}
	l := len(authScheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], authScheme) {
		token := strings.TrimSpace(header[l:])
		return token, token != ""
	}
	return "", false
}
