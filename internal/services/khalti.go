package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const khaltiStatusCompleted = "Completed"

type khaltiInitiateRequest struct {
	ReturnURL         string `json:"return_url"`
	WebsiteURL        string `json:"website_url"`
	Amount            int64  `json:"amount"` // paisa
	PurchaseOrderID   string `json:"purchase_order_id"`
	PurchaseOrderName string `json:"purchase_order_name"`
}

type khaltiInitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	Detail     string `json:"detail"`
}

type khaltiLookupResponse struct {
	Pidx          string `json:"pidx"`
	Status        string `json:"status"`
	TotalAmount   int64  `json:"total_amount"`
	TransactionID string `json:"transaction_id"`
}

// KhaltiClient talks to the Khalti ePayment API.
type KhaltiClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewKhaltiClient(cfg *config.Config) *KhaltiClient {
	return &KhaltiClient{
		baseURL:    strings.TrimRight(cfg.KhaltiBaseURL, "/"),
		secretKey:  cfg.KhaltiSecretKey,
		httpClient: newGatewayHTTPClient(cfg.PaymentTimeout),
	}
}

func (c *KhaltiClient) initiate(ctx context.Context, payload khaltiInitiateRequest) (*khaltiInitiateResponse, error) {
	var out khaltiInitiateResponse
	status, _, err := c.post(ctx, "/epayment/initiate/", payload, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || out.Pidx == "" {
		msg := out.Detail
		if msg == "" {
			msg = "Khalti initiate failed"
		}
		return nil, &ProviderError{Provider: models.ProviderKhalti, Status: status, Message: msg}
	}
	return &out, nil
}

// lookup returns the decoded status together with the raw body for audit.
func (c *KhaltiClient) lookup(ctx context.Context, pidx string) (*khaltiLookupResponse, []byte, error) {
	var out khaltiLookupResponse
	status, raw, err := c.post(ctx, "/epayment/lookup/", map[string]string{"pidx": pidx}, &out)
	if err != nil {
		return nil, raw, err
	}
	if status != http.StatusOK {
		return nil, raw, &ProviderError{Provider: models.ProviderKhalti, Status: status, Message: "Khalti lookup failed"}
	}
	return &out, raw, nil
}

func (c *KhaltiClient) post(ctx context.Context, path string, payload interface{}, out interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode khalti request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build khalti request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("khalti request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read khalti response: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, raw, fmt.Errorf("failed to decode khalti response: %w", err)
		}
	}
	return resp.StatusCode, raw, nil
}

// KhaltiService originates redirect payments and verifies their return by a
// server-to-server lookup. The callback query string is never trusted.
type KhaltiService struct {
	engine  *ReconciliationEngine
	store   store.Store
	client  *KhaltiClient
	cfg     *config.Config
	metrics *metrics.Payments
}

func NewKhaltiService(engine *ReconciliationEngine, st store.Store, client *KhaltiClient, cfg *config.Config, m *metrics.Payments) *KhaltiService {
	return &KhaltiService{engine: engine, store: st, client: client, cfg: cfg, metrics: m}
}

func (s *KhaltiService) Initiate(ctx context.Context, userID uuid.UUID, plan *models.Plan) (*dto.KhaltiInitiateResponse, error) {
	if !s.cfg.KhaltiConfigured() {
		return nil, NotConfiguredError(models.ProviderKhalti)
	}

	sub, payment, err := s.engine.CreatePendingPayment(ctx, userID, plan, models.ProviderKhalti)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.initiate(ctx, khaltiInitiateRequest{
		ReturnURL:         strings.TrimRight(s.cfg.ServerURL, "/") + "/api/v1/payments/khalti/callback",
		WebsiteURL:        s.cfg.ClientOrigin,
		Amount:            payment.AmountNPR * 100,
		PurchaseOrderID:   payment.ID.String(),
		PurchaseOrderName: plan.Name,
	})
	if err != nil {
		slog.Error("khalti initiate failed",
			"user_id", userID.String(),
			"payment_id", payment.ID.String(),
			"provider", string(models.ProviderKhalti),
			"action", "initiate",
			"error", err.Error(),
		)
		if ferr := s.engine.FinalizeFailure(ctx, payment, nil); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, err
	}

	pidx := resp.Pidx
	if err := s.store.UpdatePaymentDetails(ctx, payment.ID, store.PaymentDetails{ReferenceID: &pidx}); err != nil {
		// Without the pidx no callback can find this payment again.
		err = fmt.Errorf("failed to store khalti reference: %w", err)
		if ferr := s.engine.FinalizeFailure(ctx, payment, nil); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, err
	}

	return &dto.KhaltiInitiateResponse{
		PaymentURL:     resp.PaymentURL,
		Pidx:           pidx,
		PaymentID:      payment.ID,
		SubscriptionID: sub.ID,
	}, nil
}

// Callback settles the payment referenced by pidx. Unknown references are
// reported as OutcomeNotFound without touching any row.
func (s *KhaltiService) Callback(ctx context.Context, pidx string) (Outcome, error) {
	outcome, err := s.callback(ctx, pidx)
	s.metrics.Callbacks.WithLabelValues(string(models.ProviderKhalti), string(outcome)).Inc()
	return outcome, err
}

func (s *KhaltiService) callback(ctx context.Context, pidx string) (Outcome, error) {
	if !s.cfg.KhaltiConfigured() {
		return OutcomeFailed, NotConfiguredError(models.ProviderKhalti)
	}

	payment, err := s.store.FindPaymentByReference(ctx, pidx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("khalti callback for unknown pidx", "pidx", pidx)
			return OutcomeNotFound, nil
		}
		return OutcomeFailed, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment.Provider != models.ProviderKhalti {
		slog.Warn("khalti callback references non-khalti payment", "payment_id", payment.ID.String())
		return OutcomeNotFound, nil
	}

	lookup, raw, err := s.client.lookup(ctx, pidx)
	if err != nil || lookup.Status != khaltiStatusCompleted {
		if err != nil {
			slog.Error("khalti lookup failed",
				"payment_id", payment.ID.String(),
				"provider", string(models.ProviderKhalti),
				"action", "lookup",
				"error", err.Error(),
			)
		}
		if ferr := s.engine.FinalizeFailure(ctx, payment, evidence(raw)); ferr != nil {
			return OutcomeFailed, ferr
		}
		return OutcomeFailed, nil
	}

	if err := s.engine.FinalizeSuccess(ctx, payment, evidence(raw)); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeSuccess, nil
}

// evidence keeps a provider response only when it is valid JSON.
func evidence(raw []byte) datatypes.JSON {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return datatypes.JSON(raw)
}
