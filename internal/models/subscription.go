package models

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
	SubscriptionExpired  SubscriptionStatus = "EXPIRED"
)

// Subscription is one period grant. Every payment attempt creates a new row;
// the latest row per user is the current one.
type Subscription struct {
	ID               uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID           uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanID           uuid.UUID          `gorm:"type:uuid;not null;index" json:"plan_id"`
	Status           SubscriptionStatus `gorm:"size:20;not null;default:'PAST_DUE';index" json:"status"`
	CurrentPeriodEnd time.Time          `gorm:"not null" json:"current_period_end"`
	CreatedAt        time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Lapsed reports whether an ACTIVE subscription has run past its period end.
func (s *Subscription) Lapsed(now time.Time) bool {
	return s.Status == SubscriptionActive && s.CurrentPeriodEnd.Before(now)
}
