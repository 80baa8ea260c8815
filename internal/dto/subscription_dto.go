package dto

import "github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"

type SubscriptionResponse struct {
	models.Subscription
	Plan *models.Plan `json:"plan"`
}

type AccessResponse struct {
	HasAccess bool `json:"has_access"`
}
