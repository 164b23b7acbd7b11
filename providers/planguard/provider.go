// Package planguard adapts a standalone content-restriction plugin that
// stores its plan grants as per-user metadata. Unlike the storefront add-on
// it has no billing engine: a grant is either enabled until an expiry stamp
// or paused by an operator.
package planguard

import (
	"context"
	"encoding/json"
	"time"

	memberauth "github.com/goliatone/go-memberauth"
)

// ProviderName is the registry name planguard memberships are tagged with.
const ProviderName = "planguard"

// GrantsMetadataKey is the plugin-owned metadata key the grant map lives
// under.
const GrantsMetadataKey = "_planguard_grants"

// Grant statuses in the plugin's vocabulary. Only enabled grants count; a
// paused grant keeps its expiry but stops granting access until resumed.
const (
	StatusEnabled = "enabled"
	StatusPaused  = "paused"
)

// Grant is one plan grant as the plugin stores it. A zero ExpiresAt means the
// grant never expires.
type Grant struct {
	PlanID    string `json:"plan_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

func (g Grant) active(now time.Time) bool {
	if g.Status != StatusEnabled {
		return false
	}
	return g.ExpiresAt == 0 || g.ExpiresAt > now.Unix()
}

// Plan is one entry in the plugin's configured catalog.
type Plan struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider reads grants from the metadata store the plugin writes into.
type Provider struct {
	store  memberauth.MetadataStore
	plans  []Plan
	logger memberauth.Logger
	clock  memberauth.Clock
}

var _ memberauth.MembershipProvider = (*Provider)(nil)

// Option customizes a Provider.
type Option func(*Provider)

// New returns a provider over the plugin's grant storage. The plan catalog is
// configuration the plugin ships with, not data derived per user.
func New(store memberauth.MetadataStore, plans []Plan, opts ...Option) *Provider {
	provider := &Provider{
		store: store,
		plans: plans,
		clock: memberauth.ClockFunc(time.Now),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider
}

// WithLogger sets the provider logger.
func WithLogger(logger memberauth.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(clock memberauth.Clock) Option {
	return func(p *Provider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// Name implements memberauth.MembershipProvider.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable implements memberauth.MembershipProvider.
func (p *Provider) IsAvailable() bool { return p != nil && p.store != nil }

// GetUserMemberships returns the user's currently active grants.
func (p *Provider) GetUserMemberships(ctx context.Context, userID int64) ([]memberauth.MembershipRecord, error) {
	grants, err := p.loadGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	records := make([]memberauth.MembershipRecord, 0, len(grants))
	for _, grant := range grants {
		if !grant.active(now) {
			continue
		}
		records = append(records, memberauth.MembershipRecord{
			ID:     grant.PlanID,
			PlanID: grant.PlanID,
			Name:   grant.Name,
			Status: grant.Status,
		})
	}
	return records, nil
}

// UserHasMembership implements memberauth.MembershipProvider.
func (p *Provider) UserHasMembership(ctx context.Context, userID int64, planID string) (bool, error) {
	grants, err := p.loadGrants(ctx, userID)
	if err != nil {
		return false, err
	}
	grant, ok := grants[planID]
	if !ok {
		return false, nil
	}
	return grant.active(p.clock.Now()), nil
}

// GetMembershipPlans returns the configured catalog.
func (p *Provider) GetMembershipPlans(ctx context.Context) ([]memberauth.PlanRecord, error) {
	records := make([]memberauth.PlanRecord, 0, len(p.plans))
	for _, plan := range p.plans {
		records = append(records, memberauth.PlanRecord{
			ID:   plan.ID,
			Name: plan.Name,
		})
	}
	return records, nil
}

// GrantPlan writes or refreshes a grant. This is the plugin's own write path,
// exposed so hosts and tests can drive it.
func (p *Provider) GrantPlan(ctx context.Context, userID int64, grant Grant) error {
	grants, err := p.loadGrants(ctx, userID)
	if err != nil {
		return err
	}
	if grant.Status == "" {
		grant.Status = StatusEnabled
	}
	grants[grant.PlanID] = grant
	return p.saveGrants(ctx, userID, grants)
}

// RevokePlan removes a grant. Absent grants are a no-op.
func (p *Provider) RevokePlan(ctx context.Context, userID int64, planID string) error {
	grants, err := p.loadGrants(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := grants[planID]; !ok {
		return nil
	}
	delete(grants, planID)
	return p.saveGrants(ctx, userID, grants)
}

func (p *Provider) loadGrants(ctx context.Context, userID int64) (map[string]Grant, error) {
	data, err := p.store.Get(ctx, userID, GrantsMetadataKey)
	if err != nil {
		if memberauth.IsMetadataNotFound(err) {
			return map[string]Grant{}, nil
		}
		return nil, err
	}

	grants := map[string]Grant{}
	if err := json.Unmarshal(data, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func (p *Provider) saveGrants(ctx context.Context, userID int64, grants map[string]Grant) error {
	data, err := json.Marshal(grants)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, userID, GrantsMetadataKey, data)
}
