// Package redistore persists per-user metadata in Redis for hosts that keep
// sessions out of their relational database. Values live under one key per
// user/metadata pair; writes are plain SETs, so concurrent token set updates
// are last write wins exactly like the other stores.
package redistore

import (
	"context"
	"errors"
	"fmt"
	"time"

	memberauth "github.com/goliatone/go-memberauth"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "memberauth"

// Store implements memberauth.MetadataStore over a redis client.
type Store struct {
	cli    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ memberauth.MetadataStore = (*Store)(nil)

// Option customizes a Store.
type Option func(*Store)

// New wraps an existing redis client.
func New(cli redis.UniversalClient, opts ...Option) *Store {
	store := &Store{
		cli:    cli,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// NewFromURL connects to redis and verifies the connection with a ping.
func NewFromURL(ctx context.Context, url string, opts ...Option) (*Store, error) {
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redistore parse url: %w", err)
	}
	cli := redis.NewClient(parsed)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redistore ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redistore ping: %w", err)
	}
	return New(cli, opts...), nil
}

// WithKeyPrefix overrides the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL expires metadata keys after d. Zero keeps keys forever; the token
// engine prunes expired records itself, so a TTL is belt-and-braces against
// abandoned users.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// Get implements memberauth.MetadataStore.
func (s *Store) Get(ctx context.Context, userID int64, key string) ([]byte, error) {
	value, err := s.cli.Get(ctx, s.buildKey(userID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, memberauth.ErrMetadataNotFound
		}
		return nil, err
	}
	return value, nil
}

// Set implements memberauth.MetadataStore.
func (s *Store) Set(ctx context.Context, userID int64, key string, value []byte) error {
	return s.cli.Set(ctx, s.buildKey(userID, key), value, s.ttl).Err()
}

// Delete implements memberauth.MetadataStore. Deleting an absent key is a
// no-op.
func (s *Store) Delete(ctx context.Context, userID int64, key string) error {
	return s.cli.Del(ctx, s.buildKey(userID, key)).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.cli.Close()
}

func (s *Store) buildKey(userID int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", s.prefix, userID, key)
}
