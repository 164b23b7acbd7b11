package memberauth_test

import (
	"testing"
	"time"

	memberauth "github.com/goliatone/go-memberauth"
	"github.com/stretchr/testify/assert"
)

func TestTokenRecord_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("future expiry is alive", func(t *testing.T) {
		record := memberauth.TokenRecord{ExpiresAt: now.Add(time.Hour).Unix()}
		assert.False(t, record.Expired(now))
	})

	t.Run("past expiry is dead", func(t *testing.T) {
		record := memberauth.TokenRecord{ExpiresAt: now.Add(-time.Hour).Unix()}
		assert.True(t, record.Expired(now))
	})

	t.Run("expiry at exactly now is dead", func(t *testing.T) {
		record := memberauth.TokenRecord{ExpiresAt: now.Unix()}
		assert.True(t, record.Expired(now))
	})
}

func TestTokenSet_Prune(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("drops only expired records", func(t *testing.T) {
		set := memberauth.TokenSet{
			"live":    {Selector: "live", ExpiresAt: now.Add(time.Hour).Unix()},
			"dead":    {Selector: "dead", ExpiresAt: now.Add(-time.Hour).Unix()},
			"on-edge": {Selector: "on-edge", ExpiresAt: now.Unix()},
		}

		removed := set.Prune(now)

		assert.Equal(t, 2, removed)
		assert.Len(t, set, 1)
		assert.Contains(t, set, "live")
	})

	t.Run("empty set is a no-op", func(t *testing.T) {
		set := memberauth.TokenSet{}
		assert.Equal(t, 0, set.Prune(now))
	})
}
