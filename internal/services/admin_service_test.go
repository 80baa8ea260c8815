package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminListUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewAdminService(f.store)

	subscriber := f.addUser("Asha", "asha@example.com")
	f.addUser("Bikash", "bikash@example.com")

	sub, payment, err := f.engine.CreatePendingPayment(ctx, subscriber, f.standardPlan(t), models.ProviderKhalti)
	require.NoError(t, err)
	require.NoError(t, f.engine.FinalizeSuccess(ctx, payment, nil))

	rows, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	asha, bikash := rows[0], rows[1]
	assert.Equal(t, "asha@example.com", asha.Email)
	assert.Equal(t, string(models.SubscriptionActive), asha.SubscriptionStatus)
	require.NotNil(t, asha.PlanName)
	assert.Equal(t, "Standard Learning", *asha.PlanName)
	require.NotNil(t, asha.CurrentPeriodEnd)
	assert.Equal(t, f.subscription(t, sub.ID).CurrentPeriodEnd, *asha.CurrentPeriodEnd)

	assert.Equal(t, "NONE", bikash.SubscriptionStatus)
	assert.Nil(t, bikash.PlanName)
	assert.Nil(t, bikash.CurrentPeriodEnd)
}

func TestAdminListUsersShowsStoredStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewAdminService(f.store)
	userID := f.addUser("Chandra", "chandra@example.com")

	_, payment, err := f.engine.CreatePendingPayment(ctx, userID, f.standardPlan(t), models.ProviderManual)
	require.NoError(t, err)
	require.NoError(t, f.engine.FinalizeSuccess(ctx, payment, nil))
	f.advance(PeriodLength + 1)

	rows, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, string(models.SubscriptionActive), rows[0].SubscriptionStatus)
}
