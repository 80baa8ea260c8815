package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestCreatePendingPaymentForEveryPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	plans, err := f.plans.List(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)

	for _, plan := range plans {
		plan := plan
		t.Run(plan.Name, func(t *testing.T) {
			sub, payment, err := f.engine.CreatePendingPayment(ctx, userID, &plan, models.ProviderManual)
			require.NoError(t, err)

			assert.Equal(t, models.SubscriptionPastDue, sub.Status)
			assert.Equal(t, models.PaymentPending, payment.Status)
			assert.Equal(t, plan.PriceNPR, payment.AmountNPR)
			assert.Equal(t, sub.ID, payment.SubscriptionID)
			assert.Equal(t, plan.ID, sub.PlanID)
			assert.Equal(t, f.now.Add(PeriodLength), sub.CurrentPeriodEnd)

			stored := f.payment(t, payment.ID)
			assert.Equal(t, models.PaymentPending, stored.Status)
		})
	}
}

func TestCreatePendingPaymentRejectsUnknownProvider(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.CreatePendingPayment(context.Background(), uuid.New(), f.standardPlan(t), "PAYPAL")
	assert.ErrorIs(t, err, ErrInvalidProvider)
	assert.Zero(t, f.store.PaymentCount())
	assert.Zero(t, f.store.SubscriptionCount())
}

func TestFinalizeSuccessActivatesForFullPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, payment, err := f.engine.CreatePendingPayment(ctx, uuid.New(), f.standardPlan(t), models.ProviderKhalti)
	require.NoError(t, err)

	// Confirmation arrives a few days after origination; the period starts then.
	f.advance(72 * time.Hour)
	require.NoError(t, f.engine.FinalizeSuccess(ctx, payment, datatypes.JSON(`{"status":"Completed"}`)))

	got := f.subscription(t, sub.ID)
	assert.Equal(t, models.SubscriptionActive, got.Status)
	assert.True(t, got.CurrentPeriodEnd.After(f.now.Add(29*24*time.Hour)))
	assert.Equal(t, f.now.Add(PeriodLength), got.CurrentPeriodEnd)

	stored := f.payment(t, payment.ID)
	assert.Equal(t, models.PaymentSuccess, stored.Status)
	assert.JSONEq(t, `{"status":"Completed"}`, string(stored.GatewayPayload))
	assert.Equal(t, models.PaymentSuccess, payment.Status)
	assert.Equal(t, 1.0, metrics.CounterValue(f.metrics.Finalized.WithLabelValues("KHALTI", "SUCCESS")))
}

func TestFinalizeFailureCancels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, payment, err := f.engine.CreatePendingPayment(ctx, uuid.New(), f.standardPlan(t), models.ProviderEsewa)
	require.NoError(t, err)
	require.NoError(t, f.engine.FinalizeFailure(ctx, payment, nil))

	assert.Equal(t, models.SubscriptionCanceled, f.subscription(t, sub.ID).Status)
	assert.Equal(t, models.PaymentFailed, f.payment(t, payment.ID).Status)
}

func TestFinalizeUnknownPayment(t *testing.T) {
	f := newFixture(t)

	ghost := &models.Payment{ID: uuid.New(), SubscriptionID: uuid.New(), Provider: models.ProviderManual}
	assert.ErrorIs(t, f.engine.FinalizeSuccess(context.Background(), ghost, nil), ErrPaymentNotFound)
	assert.ErrorIs(t, f.engine.FinalizeFailure(context.Background(), ghost, nil), ErrPaymentNotFound)
}

// Finalization is not guarded by the current status. These tests pin that;
// adding a PENDING-only guard should make them fail on purpose.
func TestFinalizeSuccessTwiceExtendsTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, payment, err := f.engine.CreatePendingPayment(ctx, uuid.New(), f.standardPlan(t), models.ProviderManual)
	require.NoError(t, err)

	require.NoError(t, f.engine.FinalizeSuccess(ctx, payment, nil))
	firstEnd := f.subscription(t, sub.ID).CurrentPeriodEnd

	f.advance(240 * time.Hour)
	require.NoError(t, f.engine.FinalizeSuccess(ctx, payment, nil))
	secondEnd := f.subscription(t, sub.ID).CurrentPeriodEnd

	assert.True(t, secondEnd.After(firstEnd))
	assert.Equal(t, f.now.Add(PeriodLength), secondEnd)
	assert.Equal(t, 2.0, metrics.CounterValue(f.metrics.Finalized.WithLabelValues("MANUAL", "SUCCESS")))
}

func TestFinalizeSuccessAfterFailureReactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, payment, err := f.engine.CreatePendingPayment(ctx, uuid.New(), f.standardPlan(t), models.ProviderManual)
	require.NoError(t, err)

	require.NoError(t, f.engine.FinalizeFailure(ctx, payment, nil))
	require.NoError(t, f.engine.FinalizeSuccess(ctx, payment, nil))

	assert.Equal(t, models.SubscriptionActive, f.subscription(t, sub.ID).Status)
	assert.Equal(t, models.PaymentSuccess, f.payment(t, payment.ID).Status)
}

func TestEveryAttemptCreatesNewRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	first, _, err := f.engine.CreatePendingPayment(ctx, userID, f.standardPlan(t), models.ProviderManual)
	require.NoError(t, err)
	second, _, err := f.engine.CreatePendingPayment(ctx, userID, f.standardPlan(t), models.ProviderManual)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.store.SubscriptionCount())
	assert.Equal(t, 2, f.store.PaymentCount())
	assert.Equal(t, 2.0, metrics.CounterValue(f.metrics.Created.WithLabelValues("MANUAL")))
}
