package memberauth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// ProfileData is the computed profile view handed to the request layer.
type ProfileData map[string]any

// ProfileDecorator is the post-computation hook on profile data. It receives
// the computed data together with the user's plan ids and may return an
// augmented copy; the core applies it after its own computation and before
// returning, without depending on what it adds.
type ProfileDecorator interface {
	Decorate(ctx context.Context, data ProfileData, userID int64, planIDs []string) (ProfileData, error)
}

// ProfileDecoratorFunc adapts a function into a ProfileDecorator.
type ProfileDecoratorFunc func(ctx context.Context, data ProfileData, userID int64, planIDs []string) (ProfileData, error)

// Decorate satisfies the ProfileDecorator interface.
func (f ProfileDecoratorFunc) Decorate(ctx context.Context, data ProfileData, userID int64, planIDs []string) (ProfileData, error) {
	if f == nil {
		return data, nil
	}
	return f(ctx, data, userID, planIDs)
}

// ProfileService assembles a user's profile view: the host-owned user record,
// the merged membership list, and whatever registered decorators layer on top.
type ProfileService struct {
	users      UserRecordProvider
	aggregator *Aggregator
	decorators []ProfileDecorator
	logger     Logger
}

// ProfileServiceOption customizes a ProfileService.
type ProfileServiceOption func(*ProfileService)

// NewProfileService wires profile assembly over the external user directory
// and the membership aggregator.
func NewProfileService(users UserRecordProvider, aggregator *Aggregator, opts ...ProfileServiceOption) *ProfileService {
	service := &ProfileService{
		users:      users,
		aggregator: aggregator,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// WithProfileDecorator appends a post-computation hook, run in order.
func WithProfileDecorator(decorator ProfileDecorator) ProfileServiceOption {
	return func(s *ProfileService) {
		if decorator != nil {
			s.decorators = append(s.decorators, decorator)
		}
	}
}

// WithProfileLogger sets the service logger.
func WithProfileLogger(logger Logger) ProfileServiceOption {
	return func(s *ProfileService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// GetProfile computes the profile view for userID. The user record keys are
// copied into the result untouched; memberships land under "memberships" and
// derived flags under "flags".
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (ProfileData, error) {
	if s.users == nil {
		return nil, errors.New("profile service requires a user record provider", errors.CategoryInternal)
	}

	record, err := s.users.FindUserRecord(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load user record")
	}

	data := ProfileData{}
	for key, value := range record {
		data[key] = value
	}

	var planIDs []string
	if s.aggregator != nil {
		result, err := s.aggregator.GetUserMemberships(ctx, userID)
		if err != nil {
			return nil, err
		}
		data["memberships"] = result.Memberships
		if len(result.Flags) > 0 {
			data["flags"] = result.Flags
		}
		planIDs = result.PlanIDs()
	}

	for _, decorator := range s.decorators {
		data, err = decorator.Decorate(ctx, data, userID, planIDs)
		if err != nil {
			s.logger.Error("profile decorator failed", "user_id", userID, "error", err)
			return nil, err
		}
	}

	return data, nil
}
