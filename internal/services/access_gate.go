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
)

// AccessGate answers whether a user may see paid content. Expiry is applied
// lazily: reading a lapsed ACTIVE subscription writes EXPIRED back first.
type AccessGate struct {
	store   store.Store
	metrics *metrics.Payments
	now     func() time.Time
}

func NewAccessGate(st store.Store, m *metrics.Payments) *AccessGate {
	return &AccessGate{store: st, metrics: m, now: time.Now}
}

// SetClock replaces the time source.
func (g *AccessGate) SetClock(now func() time.Time) {
	g.now = now
}

// CurrentSubscription returns the user's most recent subscription row after
// applying the expiry check. ErrSubscriptionNotFound when the user has none.
func (g *AccessGate) CurrentSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := g.store.FindLatestSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub.Lapsed(g.now()) {
		if err := g.store.UpdateSubscriptionStatus(ctx, sub.ID, models.SubscriptionExpired); err != nil {
			return nil, fmt.Errorf("failed to expire subscription: %w", err)
		}
		sub.Status = models.SubscriptionExpired
		g.metrics.Lapsed.Inc()
		slog.Info("subscription expired",
			"user_id", userID.String(),
			"subscription_id", sub.ID.String(),
			"period_end", sub.CurrentPeriodEnd,
		)
	}
	return sub, nil
}

func (g *AccessGate) HasActiveAccess(ctx context.Context, userID uuid.UUID) (bool, error) {
	sub, err := g.CurrentSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			g.metrics.AccessChecks.WithLabelValues("false").Inc()
			return false, nil
		}
		return false, err
	}

	granted := sub.Status == models.SubscriptionActive
	if granted {
		g.metrics.AccessChecks.WithLabelValues("true").Inc()
	} else {
		g.metrics.AccessChecks.WithLabelValues("false").Inc()
	}
	return granted, nil
}
