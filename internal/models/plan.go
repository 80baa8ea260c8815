package models

import (
	"time"

	"github.com/google/uuid"
)

const BillingMonthly = "MONTHLY"

// Plan is a subscription tier. Prices are whole rupees.
type Plan struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string    `gorm:"not null;size:100;uniqueIndex" json:"name"`
	PriceNPR     int64     `gorm:"not null" json:"price_npr"`
	BillingCycle string    `gorm:"size:20;not null;default:'MONTHLY'" json:"billing_cycle"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Plan) TableName() string {
	return "subscription_plans"
}
