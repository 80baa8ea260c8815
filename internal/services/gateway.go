package services

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
)

var ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

// Outcome is the terminal result a callback reports back to the browser.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeNotFound Outcome = "notfound"
)

// ProviderError carries a gateway's rejection message to the caller.
type ProviderError struct {
	Provider models.PaymentProvider
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// NotConfiguredError names the gateway whose credentials are missing.
func NotConfiguredError(provider models.PaymentProvider) error {
	return fmt.Errorf("%s %w", provider, ErrGatewayNotConfigured)
}

func newGatewayHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// formatAmount renders whole rupees the way eSewa signs them ("499.00").
func formatAmount(npr int64) string {
	return fmt.Sprintf("%d.00", npr)
}
