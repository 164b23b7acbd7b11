package jwks_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	memberauth "github.com/goliatone/go-memberauth"
	"github.com/goliatone/go-memberauth/provider/jwks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKID = "test-key"

var signingKey = []byte("test-signing-secret")

func signToken(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()

	if claims["exp"] == nil {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = testKID

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newVerifier(t *testing.T, cfg jwks.Config) *jwks.Verifier {
	t.Helper()

	if cfg.SigningKeys == nil && len(cfg.JWKSetURLs) == 0 {
		cfg.SigningKeys = map[string]jwks.SigningKey{
			testKID: {JWTAlg: jwt.SigningMethodHS256.Alg(), Key: signingKey},
		}
	}

	verifier, err := jwks.New(cfg)
	require.NoError(t, err)
	return verifier
}

func TestNew(t *testing.T) {
	t.Run("requires keys or urls", func(t *testing.T) {
		_, err := jwks.New(jwks.Config{})
		assert.Error(t, err)
	})

	t.Run("accepts pinned keys", func(t *testing.T) {
		verifier := newVerifier(t, jwks.Config{})
		assert.NotNil(t, verifier)
	})
}

func TestVerifier_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("maps the subject to a user id", func(t *testing.T) {
		verifier := newVerifier(t, jwks.Config{})

		token := signToken(t, signingKey, jwt.MapClaims{"sub": "42"})

		userID, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
	})

	t.Run("expired token collapses to the generic error", func(t *testing.T) {
		verifier := newVerifier(t, jwks.Config{})

		token := signToken(t, signingKey, jwt.MapClaims{
			"sub": "42",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := verifier.Verify(ctx, token)
		assert.True(t, memberauth.IsInvalidTokenError(err))
	})

	t.Run("wrong signature collapses to the generic error", func(t *testing.T) {
		verifier := newVerifier(t, jwks.Config{})

		token := signToken(t, []byte("some-other-secret"), jwt.MapClaims{"sub": "42"})

		_, err := verifier.Verify(ctx, token)
		assert.True(t, memberauth.IsInvalidTokenError(err))
	})

	t.Run("garbage input collapses to the generic error", func(t *testing.T) {
		verifier := newVerifier(t, jwks.Config{})

		_, err := verifier.Verify(ctx, "not.a.jwt")
		assert.True(t, memberauth.IsInvalidTokenError(err))
	})

	t.Run("non numeric subject collapses to the generic error", func(t *testing.T) {
		verifier := newVerifier(t, jwks.Config{})

		token := signToken(t, signingKey, jwt.MapClaims{"sub": "auth0|abc123"})

		_, err := verifier.Verify(ctx, token)
		assert.True(t, memberauth.IsInvalidTokenError(err))
	})

	t.Run("issuer mismatch collapses to the generic error", func(t *testing.T) {
		verifier := newVerifier(t, jwks.Config{Issuer: "https://idp.example.com/"})

		token := signToken(t, signingKey, jwt.MapClaims{
			"sub": "42",
			"iss": "https://rogue.example.com/",
		})

		_, err := verifier.Verify(ctx, token)
		assert.True(t, memberauth.IsInvalidTokenError(err))
	})

	t.Run("issuer and audience match passes", func(t *testing.T) {
		verifier := newVerifier(t, jwks.Config{
			Issuer:   "https://idp.example.com/",
			Audience: "memberauth-api",
		})

		token := signToken(t, signingKey, jwt.MapClaims{
			"sub": "42",
			"iss": "https://idp.example.com/",
			"aud": "memberauth-api",
		})

		userID, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
	})

	t.Run("custom subject mapper wins", func(t *testing.T) {
		verifier := newVerifier(t, jwks.Config{
			SubjectMapper: func(claims jwt.MapClaims) (int64, error) {
				uid, _ := claims["uid"].(float64)
				return int64(uid), nil
			},
		})

		token := signToken(t, signingKey, jwt.MapClaims{
			"sub": "auth0|abc123",
			"uid": 77,
		})

		userID, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, int64(77), userID)
	})
}

func TestVerifier_BehindMultiVerifier(t *testing.T) {
	ctx := context.Background()

	external := newVerifier(t, jwks.Config{})
	opaque := memberauth.TokenVerifierFunc(func(ctx context.Context, token string) (int64, error) {
		return 0, memberauth.ErrInvalidToken
	})

	chain := memberauth.NewMultiVerifier(opaque, external)

	token := signToken(t, signingKey, jwt.MapClaims{"sub": "42"})

	userID, err := chain.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}
