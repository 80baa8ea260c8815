package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualPaymentApprovalFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewManualPaymentService(f.engine, f.store)
	userID := f.addUser("Sita", "sita@example.com")
	adminID := f.addUser("Admin", "admin@example.com")

	resp, err := svc.Request(ctx, userID, f.standardPlan(t), "  paid via QR ", "https://img.example/proof.png")
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	row := pending[0]
	assert.Equal(t, resp.PaymentID, row.Payment.ID)
	require.NotNil(t, row.Payment.Note)
	assert.Equal(t, "paid via QR", *row.Payment.Note)
	require.NotNil(t, row.Payment.ProofURL)
	assert.Equal(t, "https://img.example/proof.png", *row.Payment.ProofURL)
	require.NotNil(t, row.Subscription)
	assert.Equal(t, resp.SubscriptionID, row.Subscription.ID)
	require.NotNil(t, row.User)
	assert.Equal(t, "sita@example.com", row.User.Email)

	access, err := f.gate.HasActiveAccess(ctx, userID)
	require.NoError(t, err)
	assert.False(t, access)

	approved, err := svc.Approve(ctx, adminID, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, approved.Status)

	current, err := f.gate.CurrentSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, current.Status)
	assert.Equal(t, f.now.Add(PeriodLength), current.CurrentPeriodEnd)

	pending, err = svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestManualPaymentWithoutDetails(t *testing.T) {
	f := newFixture(t)
	svc := NewManualPaymentService(f.engine, f.store)

	resp, err := svc.Request(context.Background(), uuid.New(), f.standardPlan(t), "   ", "")
	require.NoError(t, err)

	stored := f.payment(t, resp.PaymentID)
	assert.Nil(t, stored.Note)
	assert.Nil(t, stored.ProofURL)
	assert.Nil(t, stored.ReferenceID)
	assert.Equal(t, models.ProviderManual, stored.Provider)
	assert.Equal(t, int64(499), stored.AmountNPR)
}

func TestManualPaymentReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewManualPaymentService(f.engine, f.store)
	userID := f.addUser("Ram", "ram@example.com")

	resp, err := svc.Request(ctx, userID, f.plan(t, "Live + Learning"), "", "")
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, uuid.New(), resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, rejected.Status)
	assert.Equal(t, models.SubscriptionCanceled, f.subscription(t, resp.SubscriptionID).Status)

	access, err := f.gate.HasActiveAccess(ctx, userID)
	require.NoError(t, err)
	assert.False(t, access)
}

func TestManualPaymentUnknownPayment(t *testing.T) {
	f := newFixture(t)
	svc := NewManualPaymentService(f.engine, f.store)

	_, err := svc.Approve(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	_, err = svc.Reject(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestManualPaymentApproveAcceptsAnyProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewManualPaymentService(f.engine, f.store)

	sub, payment, err := f.engine.CreatePendingPayment(ctx, uuid.New(), f.standardPlan(t), models.ProviderEsewa)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, uuid.New(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, f.subscription(t, sub.ID).Status)
}

func TestManualPaymentListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewManualPaymentService(f.engine, f.store)
	me := f.addUser("Me", "me@example.com")
	other := f.addUser("Other", "other@example.com")

	mine, err := svc.Request(ctx, me, f.standardPlan(t), "first", "")
	require.NoError(t, err)
	settled, err := svc.Request(ctx, me, f.standardPlan(t), "second", "")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, uuid.New(), settled.PaymentID)
	require.NoError(t, err)
	_, err = svc.Request(ctx, other, f.standardPlan(t), "theirs", "")
	require.NoError(t, err)
	_, _, err = f.engine.CreatePendingPayment(ctx, me, f.standardPlan(t), models.ProviderKhalti)
	require.NoError(t, err)

	payments, err := svc.ListMine(ctx, me)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, mine.PaymentID, payments[0].ID)

	none, err := svc.ListMine(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
