package storefront_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	memberauth "github.com/goliatone/go-memberauth"
	"github.com/goliatone/go-memberauth/providers/storefront"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateMembers = `CREATE TABLE storefront_members (
    id TEXT NOT NULL PRIMARY KEY,
    user_id INTEGER NOT NULL,
    plan_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    paid_through TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
	sqliteCreatePlans = `CREATE TABLE storefront_plans (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT true
);`
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateMembers)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreatePlans)
	require.NoError(t, err)

	return bunDB
}

func seedPlan(t *testing.T, db *bun.DB, id int64, name string, active bool) {
	t.Helper()
	_, err := db.NewInsert().
		Model(&storefront.PlanModel{ID: id, Name: name, Active: active}).
		Exec(context.Background())
	require.NoError(t, err)
}

func seedMember(t *testing.T, db *bun.DB, userID, planID int64, status string, paidThrough *time.Time) {
	t.Helper()
	_, err := db.NewInsert().
		Model(&storefront.MemberModel{
			ID:          uuid.New(),
			UserID:      userID,
			PlanID:      planID,
			Status:      status,
			PaidThrough: paidThrough,
			CreatedAt:   time.Now(),
		}).
		Exec(context.Background())
	require.NoError(t, err)
}

func TestProvider_Availability(t *testing.T) {
	t.Run("nil db reports unavailable", func(t *testing.T) {
		provider := storefront.New(nil)
		assert.False(t, provider.IsAvailable())
	})

	t.Run("wired db reports available", func(t *testing.T) {
		provider := storefront.New(setupDB(t))
		assert.True(t, provider.IsAvailable())
		assert.Equal(t, storefront.ProviderName, provider.Name())
	})
}

func TestProvider_GetUserMemberships(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := memberauth.ClockFunc(func() time.Time { return now })

	t.Run("active and complimentary rows grant access", func(t *testing.T) {
		db := setupDB(t)
		seedPlan(t, db, 1, "Gold", true)
		seedPlan(t, db, 2, "Silver", true)
		seedMember(t, db, 42, 1, storefront.StatusActive, nil)
		seedMember(t, db, 42, 2, storefront.StatusComplimentary, nil)

		provider := storefront.New(db, storefront.WithClock(clock))

		records, err := provider.GetUserMemberships(ctx, 42)
		require.NoError(t, err)
		require.Len(t, records, 2)

		names := []string{records[0].Name, records[1].Name}
		assert.ElementsMatch(t, []string{"Gold", "Silver"}, names)
	})

	t.Run("cancelled rows grant access until paid through", func(t *testing.T) {
		db := setupDB(t)
		seedPlan(t, db, 1, "Gold", true)

		stillPaid := now.Add(48 * time.Hour)
		seedMember(t, db, 42, 1, storefront.StatusCancelled, &stillPaid)

		lapsed := now.Add(-time.Hour)
		seedMember(t, db, 7, 1, storefront.StatusCancelled, &lapsed)

		provider := storefront.New(db, storefront.WithClock(clock))

		records, err := provider.GetUserMemberships(ctx, 42)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, storefront.StatusCancelled, records[0].Status)

		records, err = provider.GetUserMemberships(ctx, 7)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("expired and pending rows never grant", func(t *testing.T) {
		db := setupDB(t)
		seedPlan(t, db, 1, "Gold", true)
		seedMember(t, db, 42, 1, storefront.StatusExpired, nil)
		seedMember(t, db, 42, 1, storefront.StatusPending, nil)

		provider := storefront.New(db, storefront.WithClock(clock))

		records, err := provider.GetUserMemberships(ctx, 42)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("unknown users get an empty list", func(t *testing.T) {
		provider := storefront.New(setupDB(t), storefront.WithClock(clock))

		records, err := provider.GetUserMemberships(ctx, 99)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestProvider_UserHasMembership(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := memberauth.ClockFunc(func() time.Time { return now })

	db := setupDB(t)
	seedPlan(t, db, 1, "Gold", true)
	seedMember(t, db, 42, 1, storefront.StatusActive, nil)

	provider := storefront.New(db, storefront.WithClock(clock))

	t.Run("reports an access granting plan", func(t *testing.T) {
		has, err := provider.UserHasMembership(ctx, 42, "1")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("reports absence", func(t *testing.T) {
		has, err := provider.UserHasMembership(ctx, 42, "2")
		require.NoError(t, err)
		assert.False(t, has)

		has, err = provider.UserHasMembership(ctx, 7, "1")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("non numeric plan ids belong to other providers", func(t *testing.T) {
		has, err := provider.UserHasMembership(ctx, 42, "vip")
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestProvider_GetMembershipPlans(t *testing.T) {
	ctx := context.Background()

	db := setupDB(t)
	seedPlan(t, db, 1, "Gold", true)
	seedPlan(t, db, 2, "Silver", true)
	seedPlan(t, db, 3, "Retired", false)

	provider := storefront.New(db)

	plans, err := provider.GetMembershipPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "1", plans[0].ID)
	assert.Equal(t, "Gold", plans[0].Name)
	assert.Equal(t, "2", plans[1].ID)
}
