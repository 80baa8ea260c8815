package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PaymentProvider string

const (
	ProviderKhalti PaymentProvider = "KHALTI"
	ProviderEsewa  PaymentProvider = "ESEWA"
	ProviderManual PaymentProvider = "MANUAL"
)

// Valid reports whether p is one of the supported channels.
func (p PaymentProvider) Valid() bool {
	switch p {
	case ProviderKhalti, ProviderEsewa, ProviderManual:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

type Payment struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubscriptionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"subscription_id"`
	Provider       PaymentProvider `gorm:"size:20;not null;index" json:"provider"`
	AmountNPR      int64           `gorm:"not null" json:"amount_npr"`
	Status         PaymentStatus   `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	ReferenceID    *string         `gorm:"size:255;index" json:"reference_id,omitempty"`
	Note           *string         `gorm:"type:text" json:"note,omitempty"`
	ProofURL       *string         `gorm:"size:1024" json:"proof_url,omitempty"`
	// GatewayPayload keeps the provider's verification response for audit.
	GatewayPayload datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Subscription   Subscription   `gorm:"foreignKey:SubscriptionID" json:"-"`
}
