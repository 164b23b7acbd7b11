package memberauth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// MetadataStore is the per-user key/value collaborator the token engine
// persists token sets into. Values are opaque blobs; the reserved token set
// key must never be surfaced through any general purpose read API.
//
// Get returns ErrMetadataNotFound when the key is absent.
type MetadataStore interface {
	Get(ctx context.Context, userID int64, key string) ([]byte, error)
	Set(ctx context.Context, userID int64, key string, value []byte) error
	Delete(ctx context.Context, userID int64, key string) error
}

// TokenVerifier resolves a raw bearer token to a user id without tying
// callers to a specific token implementation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (int64, error)
}

// TokenIssuer mints a new device token for a user.
type TokenIssuer interface {
	Issue(ctx context.Context, userID int64, deviceLabel string) (string, error)
}

// TokenRevoker invalidates one device token or every token a user holds.
type TokenRevoker interface {
	Invalidate(ctx context.Context, userID int64, token string) error
	InvalidateAll(ctx context.Context, userID int64) error
}

// SessionLister enumerates a user's active device sessions.
type SessionLister interface {
	ListSessions(ctx context.Context, userID int64) ([]SessionInfo, error)
}

// UserRecordProvider is the external user directory collaborator consumed by
// profile assembly. The record is an opaque attribute map owned by the host.
type UserRecordProvider interface {
	FindUserRecord(ctx context.Context, userID int64) (map[string]any, error)
}

// Config holds gate and engine options
type Config interface {
	GetTokenExpiration() int
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetMetadataKey() string
}

// Clock lets tests control time. The engine only ever calls Now.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now satisfies the Clock interface.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// DefaultLogger returns the built-in stdout logger used when a component is
// not given one.
func DefaultLogger() Logger { return defLogger{} }

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] MEMBERAUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] MEMBERAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] MEMBERAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] MEMBERAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
