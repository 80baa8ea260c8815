package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PeriodLength is the flat grant of one successful payment.
const PeriodLength = 30 * 24 * time.Hour

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrInvalidPlanID        = errors.New("invalid plan id")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidProvider      = errors.New("invalid payment provider")
)

// ReconciliationEngine owns the subscription/payment state machine:
//
//	PAST_DUE --success--> ACTIVE --period end observed--> EXPIRED
//	PAST_DUE --failure--> CANCELED
//
// Every origination creates a fresh (PAST_DUE, PENDING) pair; rows are never reused.
type ReconciliationEngine struct {
	store   store.Store
	metrics *metrics.Payments
	now     func() time.Time
}

func NewReconciliationEngine(st store.Store, m *metrics.Payments) *ReconciliationEngine {
	return &ReconciliationEngine{store: st, metrics: m, now: time.Now}
}

// SetClock replaces the time source.
func (e *ReconciliationEngine) SetClock(now func() time.Time) {
	e.now = now
}

// CreatePendingPayment records a PAST_DUE subscription and a PENDING payment
// for the plan's current price.
func (e *ReconciliationEngine) CreatePendingPayment(ctx context.Context, userID uuid.UUID, plan *models.Plan, provider models.PaymentProvider) (*models.Subscription, *models.Payment, error) {
	if !provider.Valid() {
		return nil, nil, ErrInvalidProvider
	}

	sub := &models.Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanID:           plan.ID,
		Status:           models.SubscriptionPastDue,
		CurrentPeriodEnd: e.now().Add(PeriodLength),
	}
	payment := &models.Payment{
		ID:        uuid.New(),
		Provider:  provider,
		AmountNPR: plan.PriceNPR,
		Status:    models.PaymentPending,
	}

	if err := e.store.CreatePending(ctx, sub, payment); err != nil {
		return nil, nil, fmt.Errorf("failed to create pending payment: %w", err)
	}

	e.metrics.Created.WithLabelValues(string(provider)).Inc()
	slog.Info("pending payment created",
		"user_id", userID.String(),
		"payment_id", payment.ID.String(),
		"provider", string(provider),
		"amount_npr", payment.AmountNPR,
	)
	return sub, payment, nil
}

// FinalizeSuccess marks the payment SUCCESS and activates its subscription for
// a period starting now. Calling it again re-extends the period.
func (e *ReconciliationEngine) FinalizeSuccess(ctx context.Context, payment *models.Payment, evidence datatypes.JSON) error {
	periodEnd := e.now().Add(PeriodLength)
	err := e.apply(ctx, payment, store.Transition{
		PaymentID:          payment.ID,
		PaymentStatus:      models.PaymentSuccess,
		SubscriptionID:     payment.SubscriptionID,
		SubscriptionStatus: models.SubscriptionActive,
		PeriodEnd:          &periodEnd,
		GatewayPayload:     evidence,
	})
	if err != nil {
		return err
	}
	payment.Status = models.PaymentSuccess
	return nil
}

// FinalizeFailure marks the payment FAILED and cancels its subscription.
func (e *ReconciliationEngine) FinalizeFailure(ctx context.Context, payment *models.Payment, evidence datatypes.JSON) error {
	err := e.apply(ctx, payment, store.Transition{
		PaymentID:          payment.ID,
		PaymentStatus:      models.PaymentFailed,
		SubscriptionID:     payment.SubscriptionID,
		SubscriptionStatus: models.SubscriptionCanceled,
		GatewayPayload:     evidence,
	})
	if err != nil {
		return err
	}
	payment.Status = models.PaymentFailed
	return nil
}

func (e *ReconciliationEngine) apply(ctx context.Context, payment *models.Payment, t store.Transition) error {
	if err := e.store.ApplyTransition(ctx, t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPaymentNotFound
		}
		slog.Error("payment finalization failed",
			"payment_id", payment.ID.String(),
			"provider", string(payment.Provider),
			"action", "finalize_"+string(t.PaymentStatus),
			"error", err.Error(),
		)
		return fmt.Errorf("failed to finalize payment: %w", err)
	}

	e.metrics.Finalized.WithLabelValues(string(payment.Provider), string(t.PaymentStatus)).Inc()
	slog.Info("payment finalized",
		"payment_id", payment.ID.String(),
		"subscription_id", payment.SubscriptionID.String(),
		"provider", string(payment.Provider),
		"status", string(t.PaymentStatus),
	)
	return nil
}
