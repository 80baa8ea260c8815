package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateManualPaymentRequest(t *testing.T) {
	err := Validate(&ManualPaymentRequest{
		PlanID:   "8f7a6b52-8c2e-4b59-9a59-0f4c3f0d2f11",
		Note:     "paid via QR",
		ProofURL: "https://cdn.example.com/proof.png",
	})
	require.NoError(t, err)

	err = Validate(&ManualPaymentRequest{PlanID: "8f7a6b52-8c2e-4b59-9a59-0f4c3f0d2f11"})
	require.NoError(t, err, "note and proof are optional")
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := Validate(&ManualPaymentRequest{PlanID: "abc", ProofURL: "not a url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan_id must be a valid id")
	assert.Contains(t, err.Error(), "proof_url must be a valid URL")
}

func TestValidateSubscribeProvider(t *testing.T) {
	err := Validate(&SubscribeRequest{
		PlanID:   "8f7a6b52-8c2e-4b59-9a59-0f4c3f0d2f11",
		Provider: "PAYPAL",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider must be one of: KHALTI ESEWA MANUAL")
}

func TestValidateRegister(t *testing.T) {
	err := Validate(&RegisterRequest{Name: "A", Email: "nope", Password: "123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name must be at least 2 characters")
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "password must be at least 6 characters")
}
