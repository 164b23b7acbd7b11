// Package jwks verifies externally issued identity tokens (JWTs signed by an
// IdP and published through a JWK Set) and maps their subject onto a local
// user id. Chain it behind the opaque token engine with a MultiVerifier so
// first-party device tokens keep priority.
package jwks

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	memberauth "github.com/goliatone/go-memberauth"
)

// SigningKey holds a locally pinned verification key.
type SigningKey struct {
	JWTAlg string
	Key    any
}

// SubjectMapper resolves validated claims to a local user id.
type SubjectMapper func(claims jwt.MapClaims) (int64, error)

// Config configures a Verifier. At least one of SigningKeys or JWKSetURLs is
// required.
type Config struct {
	SigningKeys map[string]SigningKey
	JWKSetURLs  []string

	Issuer   string
	Audience string

	// SubjectMapper defaults to parsing the sub claim as a decimal user id.
	SubjectMapper SubjectMapper

	Logger memberauth.Logger
}

// Verifier implements memberauth.TokenVerifier for external identity tokens.
type Verifier struct {
	keyFunc jwt.Keyfunc
	cfg     Config
	logger  memberauth.Logger
	mapper  SubjectMapper
}

var _ memberauth.TokenVerifier = (*Verifier)(nil)

// New builds a verifier from pinned keys, remote JWK Set URLs, or both.
func New(cfg Config) (*Verifier, error) {
	if len(cfg.SigningKeys) == 0 && len(cfg.JWKSetURLs) == 0 {
		return nil, fmt.Errorf("jwks: at least one of SigningKeys or JWKSetURLs is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = memberauth.DefaultLogger()
	}

	mapper := cfg.SubjectMapper
	if mapper == nil {
		mapper = defaultSubjectMapper
	}

	var givenKeys map[string]keyfunc.GivenKey
	if len(cfg.SigningKeys) > 0 {
		givenKeys = make(map[string]keyfunc.GivenKey, len(cfg.SigningKeys))
		for kid, key := range cfg.SigningKeys {
			givenKeys[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
				Algorithm: key.JWTAlg,
			})
		}
	}

	verifier := &Verifier{
		cfg:    cfg,
		logger: logger,
		mapper: mapper,
	}

	if len(cfg.JWKSetURLs) > 0 {
		keyFunc, err := multiKeyfunc(givenKeys, cfg.JWKSetURLs)
		if err != nil {
			return nil, fmt.Errorf("jwks: failed to build keyfunc from JWK Set URLs: %w", err)
		}
		verifier.keyFunc = keyFunc
	} else {
		verifier.keyFunc = keyfunc.NewGiven(givenKeys).Keyfunc
	}

	return verifier, nil
}

// Verify implements memberauth.TokenVerifier. Every failure collapses to the
// generic invalid-token error with the real cause kept in metadata for logs.
func (v *Verifier) Verify(ctx context.Context, raw string) (int64, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if v.cfg.Issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(v.cfg.Audience))
	}

	token, err := jwt.Parse(raw, v.keyFunc, parserOptions...)
	if err != nil {
		v.logger.Info("external token verification failed: %v", err)
		return 0, normalizeValidationError(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		v.logger.Info("external token carried no usable claims")
		return 0, memberauth.ErrInvalidToken
	}

	userID, err := v.mapper(claims)
	if err != nil {
		v.logger.Info("external token subject mapping failed: %v", err)
		return 0, normalizeValidationError(err)
	}

	return userID, nil
}

func multiKeyfunc(givenKeys map[string]keyfunc.GivenKey, jwkSetURLs []string) (jwt.Keyfunc, error) {
	opts := keyfuncOptions(givenKeys)
	m := make(map[string]keyfunc.Options, len(jwkSetURLs))
	for _, url := range jwkSetURLs {
		m[url] = opts
	}
	mopts := keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	}
	multi, err := keyfunc.GetMultiple(m, mopts)
	if err != nil {
		return nil, err
	}
	return multi.Keyfunc, nil
}

func keyfuncOptions(givenKeys map[string]keyfunc.GivenKey) keyfunc.Options {
	return keyfunc.Options{
		GivenKeys: givenKeys,
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWK set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
}

func defaultSubjectMapper(claims jwt.MapClaims) (int64, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("subject %q is not a local user id", sub)
	}
	return userID, nil
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	clone := memberauth.ErrInvalidToken.Clone()
	clone.Source = err

	reason := "malformed"
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		reason = "expired"
	}

	return clone.WithMetadata(map[string]any{
		"provider": "jwks",
		"reason":   reason,
		"cause":    err.Error(),
	})
}
