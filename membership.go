package memberauth

import "context"

// MembershipRecord is one access-granting membership as reported by a
// provider. ID and PlanID are scoped to the owning provider; Provider is the
// registry name the Aggregator tags records with, providers leave it empty.
type MembershipRecord struct {
	ID       string `json:"id"`
	PlanID   string `json:"plan_id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
}

// PlanRecord is a membership tier a provider currently offers, independent of
// any user. Provider is attached by the Aggregator.
type PlanRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
}

// MembershipProvider adapts one external subscription system to a uniform
// capability surface. Implementations decide for themselves which statuses
// count as access-granting (a cancelled membership still inside its paid
// period may well grant access); the Aggregator never second-guesses them.
//
// IsAvailable must be cheap (an installed/configured check, not a network
// call) since it runs on every aggregation query.
type MembershipProvider interface {
	Name() string
	IsAvailable() bool
	GetUserMemberships(ctx context.Context, userID int64) ([]MembershipRecord, error)
	UserHasMembership(ctx context.Context, userID int64, planID string) (bool, error)
	GetMembershipPlans(ctx context.Context) ([]PlanRecord, error)
}
