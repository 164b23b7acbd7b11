package memberauth

import (
	"encoding/json"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultMetadataKey is the reserved metadata key the token set blob lives
// under. Stores must never expose it through any general purpose read API.
const DefaultMetadataKey = "_memberauth_tokens"

// TokenRecord is one active device session. The validator secret is never
// stored; only its digest survives issuance.
type TokenRecord struct {
	Selector      string `json:"selector"`
	ValidatorHash string `json:"validator_hash"`
	DeviceLabel   string `json:"device_label,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	ExpiresAt     int64  `json:"expires_at"`
}

// Expired reports whether the record is semantically dead. A record whose
// expiry is at or before now must be treated as absent everywhere.
func (r TokenRecord) Expired(now time.Time) bool {
	return r.ExpiresAt <= now.Unix()
}

// TokenSet maps selector to token record for a single user. Multiple entries
// represent multiple logged-in devices.
type TokenSet map[string]TokenRecord

// Prune drops every expired record and returns how many were removed.
// Garbage collection happens on write, not on a timer.
func (s TokenSet) Prune(now time.Time) int {
	removed := 0
	for selector, record := range s {
		if record.Expired(now) {
			delete(s, selector)
			removed++
		}
	}
	return removed
}

func encodeTokenSet(set TokenSet) ([]byte, error) {
	data, err := json.Marshal(set)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode token set")
	}
	return data, nil
}

func decodeTokenSet(data []byte) (TokenSet, error) {
	if len(data) == 0 {
		return TokenSet{}, nil
	}
	set := TokenSet{}
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode token set")
	}
	return set, nil
}

// SessionInfo is the caller-safe view of a token record returned by
// ListSessions. It deliberately omits the validator digest.
type SessionInfo struct {
	Selector    string    `json:"selector"`
	DeviceLabel string    `json:"device_label,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
