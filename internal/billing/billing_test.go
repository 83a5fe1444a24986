package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySubscriptionStoreFirstForTenant(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySubscriptionStore()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, &Subscription{
		ID: "sub_2", TenantID: "ten_1", PriceID: "price_pro",
		Status: SubscriptionActive, CreatedAt: base.Add(time.Hour),
	}))
	require.NoError(t, store.Create(ctx, &Subscription{
		ID: "sub_1", TenantID: "ten_1", PriceID: "price_starter",
		Status: SubscriptionCanceled, CreatedAt: base,
	}))
	require.NoError(t, store.Create(ctx, &Subscription{
		ID: "sub_3", TenantID: "ten_other", PriceID: "price_pro",
		Status: SubscriptionActive, CreatedAt: base.Add(-time.Hour),
	}))

	first, err := store.FirstForTenant(ctx, "ten_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", first.ID)
	assert.Equal(t, "price_starter", first.PriceID)
}

func TestMemorySubscriptionStoreNoSubscription(t *testing.T) {
	store := NewMemorySubscriptionStore()
	_, err := store.FirstForTenant(context.Background(), "ten_missing")
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestMemorySubscriptionStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySubscriptionStore()

	sub := &Subscription{
		ID: "sub_1", TenantID: "ten_1", PriceID: "price_starter",
		Status: SubscriptionTrialing, CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, sub))

	sub.Status = SubscriptionActive
	sub.PriceID = "price_pro"
	require.NoError(t, store.Update(ctx, sub))

	got, err := store.FirstForTenant(ctx, "ten_1")
	require.NoError(t, err)
	assert.Equal(t, SubscriptionActive, got.Status)
	assert.Equal(t, "price_pro", got.PriceID)

	err = store.Update(ctx, &Subscription{ID: "sub_ghost"})
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestMemoryPlanStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPlanStore()

	plan := &Plan{
		ID: "prod_1", Name: "Starter", PriceID: "price_starter",
		Amount: 900, Currency: "usd", Interval: "month",
		Metadata: map[string]string{"TEAM_MEMBERS": "5"},
	}
	require.NoError(t, store.Upsert(ctx, plan))

	// Mutating the caller's copy must not leak into the store.
	plan.Metadata["TEAM_MEMBERS"] = "999"

	got, err := store.GetByPriceID(ctx, "price_starter")
	require.NoError(t, err)
	assert.Equal(t, "Starter", got.Name)
	assert.Equal(t, "5", got.Metadata["TEAM_MEMBERS"])

	// Upsert replaces by price ID.
	require.NoError(t, store.Upsert(ctx, &Plan{
		ID: "prod_1", Name: "Starter v2", PriceID: "price_starter",
		Amount: 1100, Currency: "usd", Interval: "month",
		Metadata: map[string]string{"TEAM_MEMBERS": "8"},
	}))
	got, err = store.GetByPriceID(ctx, "price_starter")
	require.NoError(t, err)
	assert.Equal(t, "Starter v2", got.Name)
	assert.Equal(t, "8", got.Metadata["TEAM_MEMBERS"])
}

func TestMemoryPlanStoreNotFound(t *testing.T) {
	store := NewMemoryPlanStore()
	_, err := store.GetByPriceID(context.Background(), "price_ghost")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestFeatureMetaCountable(t *testing.T) {
	assert.True(t, Features[FeatureTeamMembers].Countable())
	assert.True(t, Features[FeatureInvitations].Countable())
	assert.False(t, Features[FeatureCustomDomains].Countable())
}
