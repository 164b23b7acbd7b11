package memberauth

import (
	"context"
)

// MembershipResult is the merged membership view for one user. Flags start
// empty; MembershipDecorator hooks layer app-specific derivations (e.g.
// "is_premium") on top without the core knowing what they mean.
type MembershipResult struct {
	Memberships []MembershipRecord `json:"memberships"`
	Flags       map[string]any     `json:"flags,omitempty"`
}

// PlanIDs collects the plan ids present in the merged result, preserving
// record order. Decorators typically branch on this.
func (r *MembershipResult) PlanIDs() []string {
	if r == nil || len(r.Memberships) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.Memberships))
	for _, m := range r.Memberships {
		ids = append(ids, m.PlanID)
	}
	return ids
}

// SetFlag records a derived flag on the result.
func (r *MembershipResult) SetFlag(key string, value any) {
	if r.Flags == nil {
		r.Flags = map[string]any{}
	}
	r.Flags[key] = value
}

// MembershipDecorator is the extension point applied to the merged membership
// view before it is returned to the request layer. Decorators may only layer
// derived data on top; the core applies them without inspecting what they add.
type MembershipDecorator interface {
	Decorate(ctx context.Context, result *MembershipResult, userID int64, planIDs []string) error
}

// MembershipDecoratorFunc adapts a function into a MembershipDecorator.
type MembershipDecoratorFunc func(ctx context.Context, result *MembershipResult, userID int64, planIDs []string) error

// Decorate satisfies the MembershipDecorator interface.
func (f MembershipDecoratorFunc) Decorate(ctx context.Context, result *MembershipResult, userID int64, planIDs []string) error {
	if f == nil {
		return nil
	}
	return f(ctx, result, userID, planIDs)
}

// Aggregator holds the provider registry and merges membership answers across
// whichever providers are currently available. The registry is expected to be
// populated at process start and left alone afterwards; registration is not
// synchronized against in-flight queries.
type Aggregator struct {
	registry   map[string]MembershipProvider
	order      []string
	decorators []MembershipDecorator
	logger     Logger
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// NewAggregator returns an empty membership aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	aggregator := &Aggregator{
		registry: map[string]MembershipProvider{},
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(aggregator)
		}
	}
	return aggregator
}

// WithAggregatorLogger sets the aggregator logger.
func WithAggregatorLogger(logger Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMembershipDecorator appends a decorator hook. Decorators run in
// registration order on every GetUserMemberships result.
func WithMembershipDecorator(decorator MembershipDecorator) AggregatorOption {
	return func(a *Aggregator) {
		if decorator != nil {
			a.decorators = append(a.decorators, decorator)
		}
	}
}

// WithProviders registers the given providers in order.
func WithProviders(providers ...MembershipProvider) AggregatorOption {
	return func(a *Aggregator) {
		for _, provider := range providers {
			a.RegisterProvider(provider)
		}
	}
}

// RegisterProvider adds a provider to the registry. Re-registering a name
// overwrites the previous instance.
func (a *Aggregator) RegisterProvider(provider MembershipProvider) {
	if provider == nil || provider.Name() == "" {
		return
	}
	name := provider.Name()
	if _, exists := a.registry[name]; !exists {
		a.order = append(a.order, name)
	}
	a.registry[name] = provider
}

// AvailableProviders filters the registry by IsAvailable. Availability is
// evaluated fresh on every call since a wrapped system can be toggled between
// requests.
func (a *Aggregator) AvailableProviders() []MembershipProvider {
	available := make([]MembershipProvider, 0, len(a.order))
	for _, name := range a.order {
		provider := a.registry[name]
		if provider.IsAvailable() {
			available = append(available, provider)
		}
	}
	return available
}

// GetUserMemberships fans out over available providers, concatenates their
// access-granting memberships tagged with the producing provider's name, and
// runs the decorator hooks over the merged result. A failing provider is
// logged and treated as having no memberships rather than aborting the
// aggregate; no provider available yields an empty result, not an error.
func (a *Aggregator) GetUserMemberships(ctx context.Context, userID int64) (*MembershipResult, error) {
	result := &MembershipResult{Memberships: []MembershipRecord{}}

	for _, provider := range a.AvailableProviders() {
		records, err := provider.GetUserMemberships(ctx, userID)
		if err != nil {
			a.logger.Warn("membership provider query failed", "provider", provider.Name(), "user_id", userID, "error", err)
			continue
		}
		for _, record := range records {
			record.Provider = provider.Name()
			result.Memberships = append(result.Memberships, record)
		}
	}

	planIDs := result.PlanIDs()
	for _, decorator := range a.decorators {
		if err := decorator.Decorate(ctx, result, userID, planIDs); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UserHasAnyMembership short-circuits on the first available provider
// reporting a non-empty membership list.
func (a *Aggregator) UserHasAnyMembership(ctx context.Context, userID int64) (bool, error) {
	for _, provider := range a.AvailableProviders() {
		records, err := provider.GetUserMemberships(ctx, userID)
		if err != nil {
			a.logger.Warn("membership provider query failed", "provider", provider.Name(), "user_id", userID, "error", err)
			continue
		}
		if len(records) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// UserHasMembership short-circuits on the first available provider answering
// true for the given plan.
func (a *Aggregator) UserHasMembership(ctx context.Context, userID int64, planID string) (bool, error) {
	for _, provider := range a.AvailableProviders() {
		has, err := provider.UserHasMembership(ctx, userID, planID)
		if err != nil {
			a.logger.Warn("membership provider check failed", "provider", provider.Name(), "user_id", userID, "plan_id", planID, "error", err)
			continue
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

// GetAllMembershipPlans concatenates the plan catalogs of every available
// provider, each tagged with the provider name. Order across providers
// follows registration order but carries no semantic meaning.
func (a *Aggregator) GetAllMembershipPlans(ctx context.Context) ([]PlanRecord, error) {
	plans := []PlanRecord{}
	for _, provider := range a.AvailableProviders() {
		records, err := provider.GetMembershipPlans(ctx)
		if err != nil {
			a.logger.Warn("membership plan catalog query failed", "provider", provider.Name(), "error", err)
			continue
		}
		for _, record := range records {
			record.Provider = provider.Name()
			plans = append(plans, record)
		}
	}
	return plans, nil
}
