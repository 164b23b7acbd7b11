package memberauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/blake2b"
)

const (
	selectorBytes  = 8
	validatorBytes = 32

	selectorHexLen  = selectorBytes * 2
	validatorHexLen = validatorBytes * 2
)

// DefaultTokenExpiration is the fixed token TTL in hours (14 days).
const DefaultTokenExpiration = 14 * 24

// TokenEngine issues, verifies, enumerates, and revokes opaque bearer tokens.
// It is stateless between calls; the durable state is the token set blob in
// the MetadataStore. Two simultaneous writes to the same user's token set are
// last-write-wins: use a store with atomic upserts if that matters to you.
type TokenEngine struct {
	store        MetadataStore
	metaKey      string
	ttl          time.Duration
	logger       Logger
	activitySink ActivitySink
	clock        Clock
}

var (
	_ TokenIssuer   = (*TokenEngine)(nil)
	_ TokenVerifier = (*TokenEngine)(nil)
	_ TokenRevoker  = (*TokenEngine)(nil)
	_ SessionLister = (*TokenEngine)(nil)
)

// TokenEngineOption customizes a TokenEngine.
type TokenEngineOption func(*TokenEngine)

// NewTokenEngine returns an engine persisting token sets into store.
func NewTokenEngine(store MetadataStore, opts ...TokenEngineOption) *TokenEngine {
	engine := &TokenEngine{
		store:        store,
		metaKey:      DefaultMetadataKey,
		ttl:          time.Duration(DefaultTokenExpiration) * time.Hour,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		clock:        systemClock{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine
}

// WithTokenExpiration sets the token TTL in hours.
func WithTokenExpiration(hours int) TokenEngineOption {
	return func(e *TokenEngine) {
		if hours > 0 {
			e.ttl = time.Duration(hours) * time.Hour
		}
	}
}

// WithMetadataKey overrides the reserved metadata key for the token set.
func WithMetadataKey(key string) TokenEngineOption {
	return func(e *TokenEngine) {
		if key != "" {
			e.metaKey = key
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger Logger) TokenEngineOption {
	return func(e *TokenEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting token events.
func WithActivitySink(sink ActivitySink) TokenEngineOption {
	return func(e *TokenEngine) {
		e.activitySink = normalizeActivitySink(sink)
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(clock Clock) TokenEngineOption {
	return func(e *TokenEngine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// FromConfig builds the engine options a Config carries.
func FromConfig(cfg Config) []TokenEngineOption {
	if cfg == nil {
		return nil
	}
	return []TokenEngineOption{
		WithTokenExpiration(cfg.GetTokenExpiration()),
		WithMetadataKey(cfg.GetMetadataKey()),
	}
}

// Issue mints a token for userID and returns the only plaintext copy that
// will ever exist. The stored record keeps a digest of the validator half.
// Expired sibling records are pruned as part of the same write.
func (e *TokenEngine) Issue(ctx context.Context, userID int64, deviceLabel string) (string, error) {
	if userID <= 0 {
		return "", errors.New("user id must be positive", errors.CategoryBadInput)
	}

	selector, err := randomHex(selectorBytes)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate selector")
	}
	validator, err := randomHex(validatorBytes)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate validator")
	}

	now := e.clock.Now()
	set, err := e.loadTokenSet(ctx, userID)
	if err != nil {
		return "", err
	}

	if pruned := set.Prune(now); pruned > 0 {
		e.logger.Debug("pruned expired token records", "user_id", userID, "count", pruned)
	}

	set[selector] = TokenRecord{
		Selector:      selector,
		ValidatorHash: digestValidator(validator),
		DeviceLabel:   deviceLabel,
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(e.ttl).Unix(),
	}

	if err := e.saveTokenSet(ctx, userID, set); err != nil {
		return "", err
	}

	e.emitTokenEvent(ctx, ActivityEventTokenIssued, userID, selector, map[string]any{
		"device_label": deviceLabel,
	})

	return fmt.Sprintf("%d.%s.%s", userID, selector, validator), nil
}

// Verify resolves a wire token to its user id. Every failure collapses to
// ErrInvalidToken on the wire; the reason is only logged and emitted to the
// activity sink. Success has no side effect; an expired record is deleted
// before the failure is reported.
func (e *TokenEngine) Verify(ctx context.Context, token string) (int64, error) {
	userID, selector, validator, err := parseWireToken(token)
	if err != nil {
		e.logger.Info("token verification failed", "reason", "malformed")
		e.emitTokenEvent(ctx, ActivityEventVerifyFailure, 0, "", map[string]any{"reason": "malformed"})
		return 0, err
	}

	set, err := e.loadTokenSet(ctx, userID)
	if err != nil {
		return 0, err
	}

	record, ok := set[selector]
	if !ok {
		e.logger.Info("token verification failed", "reason", "selector not found", "user_id", userID)
		e.emitTokenEvent(ctx, ActivityEventVerifyFailure, userID, selector, map[string]any{"reason": "selector_not_found"})
		return 0, invalidToken("selector_not_found", nil)
	}

	now := e.clock.Now()
	if record.Expired(now) {
		delete(set, selector)
		if err := e.saveTokenSet(ctx, userID, set); err != nil {
			return 0, err
		}
		e.logger.Info("token verification failed", "reason", "expired", "user_id", userID, "selector", selector)
		e.emitTokenEvent(ctx, ActivityEventVerifyFailure, userID, selector, map[string]any{"reason": "expired"})
		return 0, invalidToken("expired", nil)
	}

	if !digestEqual(digestValidator(validator), record.ValidatorHash) {
		e.logger.Info("token verification failed", "reason", "digest mismatch", "user_id", userID, "selector", selector)
		e.emitTokenEvent(ctx, ActivityEventVerifyFailure, userID, selector, map[string]any{"reason": "digest_mismatch"})
		return 0, invalidToken("digest_mismatch", nil)
	}

	return userID, nil
}

// Invalidate removes the token's record from the user's token set. This is a
// logout, not a credential check: only the selector is consulted, and an
// absent selector is a no-op.
func (e *TokenEngine) Invalidate(ctx context.Context, userID int64, token string) error {
	selector, ok := wireSelector(token)
	if !ok {
		return nil
	}

	set, err := e.loadTokenSet(ctx, userID)
	if err != nil {
		return err
	}

	if _, present := set[selector]; !present {
		return nil
	}

	delete(set, selector)
	if err := e.saveTokenSet(ctx, userID, set); err != nil {
		return err
	}

	e.emitTokenEvent(ctx, ActivityEventTokenRevoked, userID, selector, nil)
	return nil
}

// InvalidateAll deletes the user's whole token set, logging out every device.
// Idempotent.
func (e *TokenEngine) InvalidateAll(ctx context.Context, userID int64) error {
	if err := e.store.Delete(ctx, userID, e.metaKey); err != nil && !IsMetadataNotFound(err) {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete token set")
	}
	e.emitTokenEvent(ctx, ActivityEventSessionsPurged, userID, "", nil)
	return nil
}

// ListSessions returns the user's non-expired device sessions. Validator
// digests never leave the engine.
func (e *TokenEngine) ListSessions(ctx context.Context, userID int64) ([]SessionInfo, error) {
	set, err := e.loadTokenSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	sessions := make([]SessionInfo, 0, len(set))
	for _, record := range set {
		if record.Expired(now) {
			continue
		}
		sessions = append(sessions, SessionInfo{
			Selector:    record.Selector,
			DeviceLabel: record.DeviceLabel,
			CreatedAt:   time.Unix(record.CreatedAt, 0),
			ExpiresAt:   time.Unix(record.ExpiresAt, 0),
		})
	}
	return sessions, nil
}

func (e *TokenEngine) loadTokenSet(ctx context.Context, userID int64) (TokenSet, error) {
	data, err := e.store.Get(ctx, userID, e.metaKey)
	if err != nil {
		if IsMetadataNotFound(err) {
			return TokenSet{}, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load token set")
	}
	return decodeTokenSet(data)
}

func (e *TokenEngine) saveTokenSet(ctx context.Context, userID int64, set TokenSet) error {
	data, err := encodeTokenSet(set)
	if err != nil {
		return err
	}
	if err := e.store.Set(ctx, userID, e.metaKey, data); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to persist token set")
	}
	return nil
}

func (e *TokenEngine) emitTokenEvent(ctx context.Context, eventType ActivityEventType, userID int64, selector string, metadata map[string]any) {
	sink := normalizeActivitySink(e.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Selector:   selector,
		Metadata:   metadata,
		OccurredAt: e.clock.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		e.logger.Warn("activity sink record error: %v", err)
	}
}

// parseWireToken splits a wire token into its three parts and validates the
// shape of each. Shape failures collapse to the generic invalid-token error.
func parseWireToken(raw string) (int64, string, string, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return 0, "", "", invalidToken("malformed", nil)
	}

	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", "", invalidToken("malformed", err)
	}

	selector, validator := parts[1], parts[2]
	if len(selector) != selectorHexLen || !isLowerHex(selector) {
		return 0, "", "", invalidToken("malformed", nil)
	}
	if len(validator) != validatorHexLen || !isLowerHex(validator) {
		return 0, "", "", invalidToken("malformed", nil)
	}

	return userID, selector, validator, nil
}

// wireSelector extracts the selector half for logout paths. It tolerates any
// validator content since invalidation never checks the secret.
func wireSelector(raw string) (string, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return "", false
	}
	selector := parts[1]
	if len(selector) != selectorHexLen || !isLowerHex(selector) {
		return "", false
	}
	return selector, true
}

// digestValidator hashes the validator with a fast cryptographic digest. The
// validator already carries maximal entropy, so a slow password hash would
// add cost without security.
func digestValidator(validator string) string {
	sum := blake2b.Sum256([]byte(validator))
	return hex.EncodeToString(sum[:])
}

// digestEqual compares two hex digests in constant time.
func digestEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func isLowerHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
