package memberauth_test

import (
	"context"
	"errors"
	"testing"

	memberauth "github.com/goliatone/go-memberauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserDirectory struct {
	records map[int64]map[string]any
	err     error
}

func (d *stubUserDirectory) FindUserRecord(ctx context.Context, userID int64) (map[string]any, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.records[userID], nil
}

func TestProfileService_GetProfile(t *testing.T) {
	ctx := context.Background()

	directory := &stubUserDirectory{
		records: map[int64]map[string]any{
			42: {"email": "pepe@example.com", "display_name": "Pepe"},
		},
	}

	t.Run("merges user record with memberships", func(t *testing.T) {
		provider := &stubProvider{
			name:      "storefront",
			available: true,
			memberships: []memberauth.MembershipRecord{
				{ID: "m1", PlanID: "premium", Name: "Premium", Status: "active"},
			},
		}
		aggregator := memberauth.NewAggregator(memberauth.WithProviders(provider))
		service := memberauth.NewProfileService(directory, aggregator)

		profile, err := service.GetProfile(ctx, 42)
		require.NoError(t, err)

		assert.Equal(t, "pepe@example.com", profile["email"])
		assert.Equal(t, "Pepe", profile["display_name"])

		memberships, ok := profile["memberships"].([]memberauth.MembershipRecord)
		require.True(t, ok)
		require.Len(t, memberships, 1)
		assert.Equal(t, "storefront", memberships[0].Provider)
	})

	t.Run("membership flags surface on the profile", func(t *testing.T) {
		provider := &stubProvider{
			name:      "storefront",
			available: true,
			memberships: []memberauth.MembershipRecord{
				{ID: "m1", PlanID: "premium"},
			},
		}
		decorator := memberauth.MembershipDecoratorFunc(func(ctx context.Context, result *memberauth.MembershipResult, userID int64, planIDs []string) error {
			result.SetFlag("is_premium", true)
			return nil
		})
		aggregator := memberauth.NewAggregator(
			memberauth.WithProviders(provider),
			memberauth.WithMembershipDecorator(decorator),
		)
		service := memberauth.NewProfileService(directory, aggregator)

		profile, err := service.GetProfile(ctx, 42)
		require.NoError(t, err)

		flags, ok := profile["flags"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, flags["is_premium"])
	})

	t.Run("profile decorators see plan ids and may augment", func(t *testing.T) {
		provider := &stubProvider{
			name:      "storefront",
			available: true,
			memberships: []memberauth.MembershipRecord{
				{ID: "m1", PlanID: "premium"},
			},
		}
		aggregator := memberauth.NewAggregator(memberauth.WithProviders(provider))

		decorator := memberauth.ProfileDecoratorFunc(func(ctx context.Context, data memberauth.ProfileData, userID int64, planIDs []string) (memberauth.ProfileData, error) {
			assert.Equal(t, []string{"premium"}, planIDs)
			data["greeting"] = "welcome back"
			return data, nil
		})

		service := memberauth.NewProfileService(directory, aggregator,
			memberauth.WithProfileDecorator(decorator))

		profile, err := service.GetProfile(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "welcome back", profile["greeting"])
	})

	t.Run("a failing decorator fails the call", func(t *testing.T) {
		decoratorErr := errors.New("enrichment backend down")
		decorator := memberauth.ProfileDecoratorFunc(func(ctx context.Context, data memberauth.ProfileData, userID int64, planIDs []string) (memberauth.ProfileData, error) {
			return nil, decoratorErr
		})

		service := memberauth.NewProfileService(directory, memberauth.NewAggregator(),
			memberauth.WithProfileDecorator(decorator))

		_, err := service.GetProfile(ctx, 42)
		assert.ErrorIs(t, err, decoratorErr)
	})

	t.Run("user directory failures propagate", func(t *testing.T) {
		failing := &stubUserDirectory{err: errors.New("directory offline")}
		service := memberauth.NewProfileService(failing, memberauth.NewAggregator())

		_, err := service.GetProfile(ctx, 42)
		assert.Error(t, err)
	})

	t.Run("nil aggregator skips membership assembly", func(t *testing.T) {
		service := memberauth.NewProfileService(directory, nil)

		profile, err := service.GetProfile(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "pepe@example.com", profile["email"])
		assert.NotContains(t, profile, "memberships")
	})
}
