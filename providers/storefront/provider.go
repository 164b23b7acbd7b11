// Package storefront adapts a commerce-platform membership add-on to the
// memberauth provider interface. The add-on owns its own tables and billing
// rules; this provider only reads them and decides which rows still grant
// access.
package storefront

import (
	"context"
	"strconv"
	"time"

	memberauth "github.com/goliatone/go-memberauth"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProviderName is the registry name storefront memberships are tagged with.
const ProviderName = "storefront"

// Member statuses as the add-on records them. A cancelled membership keeps
// granting access until its paid-through date passes; that grace period is
// the add-on's billing rule, not ours.
const (
	StatusActive        = "active"
	StatusComplimentary = "complimentary"
	StatusCancelled     = "cancelled"
	StatusExpired       = "expired"
	StatusPending       = "pending"
)

// MemberModel is the Bun model for the add-on's membership rows.
type MemberModel struct {
	bun.BaseModel `bun:"table:storefront_members,alias:sfm"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID      int64      `bun:"user_id,notnull"`
	PlanID      int64      `bun:"plan_id,notnull"`
	Status      string     `bun:"status,notnull"`
	PaidThrough *time.Time `bun:"paid_through"`
	CreatedAt   time.Time  `bun:"created_at,default:current_timestamp"`
}

// PlanModel is the Bun model for the add-on's plan catalog.
type PlanModel struct {
	bun.BaseModel `bun:"table:storefront_plans,alias:sfp"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Name   string `bun:"name,notnull"`
	Active bool   `bun:"active,notnull,default:true"`
}

// Provider reads the add-on's tables through Bun.
type Provider struct {
	db     *bun.DB
	logger memberauth.Logger
	clock  memberauth.Clock
}

var _ memberauth.MembershipProvider = (*Provider)(nil)

// Option customizes a Provider.
type Option func(*Provider)

// New returns a provider over the add-on's database. Pass the nil db when the
// add-on is not installed; the provider then reports itself unavailable.
func New(db *bun.DB, opts ...Option) *Provider {
	provider := &Provider{
		db:    db,
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

// IsAvailable implements memberauth.MembershipProvider. Availability is an
// installed check, never a query.
func (p *Provider) IsAvailable() bool { return p != nil && p.db != nil }

// GetUserMemberships returns the user's access-granting memberships joined
// with their plan names.
func (p *Provider) GetUserMemberships(ctx context.Context, userID int64) ([]memberauth.MembershipRecord, error) {
	var members []MemberModel
	err := p.db.NewSelect().
		Model(&members).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	records := make([]memberauth.MembershipRecord, 0, len(members))
	planNames := map[int64]string{}

	for _, member := range members {
		if !grantsAccess(member, now) {
			continue
		}

		name, ok := planNames[member.PlanID]
		if !ok {
			name = p.planName(ctx, member.PlanID)
			planNames[member.PlanID] = name
		}

		records = append(records, memberauth.MembershipRecord{
			ID:     member.ID.String(),
			PlanID: strconv.FormatInt(member.PlanID, 10),
			Name:   name,
			Status: member.Status,
		})
	}

	return records, nil
}

// UserHasMembership runs a direct query for the plan instead of materializing
// the full list.
func (p *Provider) UserHasMembership(ctx context.Context, userID int64, planID string) (bool, error) {
	id, err := strconv.ParseInt(planID, 10, 64)
	if err != nil {
		return false, nil
	}

	var members []MemberModel
	err = p.db.NewSelect().
		Model(&members).
		Where("user_id = ? AND plan_id = ?", userID, id).
		Scan(ctx)
	if err != nil {
		return false, err
	}

	now := p.clock.Now()
	for _, member := range members {
		if grantsAccess(member, now) {
			return true, nil
		}
	}
	return false, nil
}

// GetMembershipPlans lists the plans currently offered.
func (p *Provider) GetMembershipPlans(ctx context.Context) ([]memberauth.PlanRecord, error) {
	var plans []PlanModel
	err := p.db.NewSelect().
		Model(&plans).
		Where("active = ?", true).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]memberauth.PlanRecord, 0, len(plans))
	for _, plan := range plans {
		records = append(records, memberauth.PlanRecord{
			ID:   strconv.FormatInt(plan.ID, 10),
			Name: plan.Name,
		})
	}
	return records, nil
}

func (p *Provider) planName(ctx context.Context, planID int64) string {
	var plan PlanModel
	err := p.db.NewSelect().
		Model(&plan).
		Where("id = ?", planID).
		Scan(ctx)
	if err != nil {
		return ""
	}
	return plan.Name
}

// grantsAccess applies the add-on's access rule: active and complimentary
// rows always grant, cancelled rows grant until paid-through passes, and
// everything else is dead weight.
func grantsAccess(member MemberModel, now time.Time) bool {
	switch member.Status {
	case StatusActive, StatusComplimentary:
		return true
	case StatusCancelled:
		return member.PaidThrough != nil && member.PaidThrough.After(now)
	default:
		return false
	}
}
