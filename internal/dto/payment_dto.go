package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/google/uuid"
)

type InitiatePaymentRequest struct {
	PlanID string `json:"plan_id" validate:"required,uuid"`
}

type SubscribeRequest struct {
	PlanID   string `json:"plan_id" validate:"required,uuid"`
	Provider string `json:"provider" validate:"required,oneof=KHALTI ESEWA MANUAL"`
	Note     string `json:"note,omitempty" validate:"omitempty,max=1000"`
	ProofURL string `json:"proof_url,omitempty" validate:"omitempty,url"`
}

type ManualPaymentRequest struct {
	PlanID   string `json:"plan_id" validate:"required,uuid"`
	Note     string `json:"note,omitempty" validate:"omitempty,max=1000"`
	ProofURL string `json:"proof_url,omitempty" validate:"omitempty,url"`
}

type KhaltiInitiateResponse struct {
	PaymentURL     string    `json:"payment_url"`
	Pidx           string    `json:"pidx"`
	PaymentID      uuid.UUID `json:"payment_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
}

type EsewaInitiateResponse struct {
	FormURL        string            `json:"form_url"`
	Fields         map[string]string `json:"fields"`
	PaymentID      uuid.UUID         `json:"payment_id"`
	SubscriptionID uuid.UUID         `json:"subscription_id"`
}

type ManualPaymentResponse struct {
	PaymentID      uuid.UUID `json:"payment_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
}

type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// PendingManualPayment is one row of the admin approval queue.
type PendingManualPayment struct {
	Payment      models.Payment       `json:"payment"`
	Subscription *models.Subscription `json:"subscription"`
	User         *UserSummary         `json:"user"`
}

type AdminUserRow struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Role               string     `json:"role"`
	SubscriptionStatus string     `json:"subscription_status"`
	PlanName           *string    `json:"plan_name"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
}

// SubscribeResponse carries the handoff of whichever channel was chosen.
type SubscribeResponse struct {
	Provider  models.PaymentProvider  `json:"provider"`
	Khalti    *KhaltiInitiateResponse `json:"khalti,omitempty"`
	Esewa     *EsewaInitiateResponse  `json:"esewa,omitempty"`
	Manual    *ManualPaymentResponse  `json:"manual,omitempty"`
	NextSteps string                  `json:"next_steps"`
}
