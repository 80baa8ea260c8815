package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	esewaSignedFieldNames = "total_amount,transaction_uuid,product_code"
	esewaStatusComplete   = "COMPLETE"
)

// EsewaSigner produces and checks the HMAC-SHA256 signatures eSewa puts on
// form posts and callback payloads.
type EsewaSigner struct {
	secret []byte
}

func NewEsewaSigner(secret string) *EsewaSigner {
	return &EsewaSigner{secret: []byte(secret)}
}

// Sign returns base64(HMAC-SHA256(secret, message)).
func (s *EsewaSigner) Sign(message string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SigningString joins name=value pairs in the order of signedFieldNames.
// Missing fields contribute an empty value.
func SigningString(signedFieldNames string, fields map[string]string) string {
	names := strings.Split(signedFieldNames, ",")
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+fields[name])
	}
	return strings.Join(parts, ",")
}

// Verify recomputes the signature over the fields named by signed_field_names
// and compares it in constant time. A signer without a secret verifies nothing.
func (s *EsewaSigner) Verify(fields map[string]string) bool {
	if len(s.secret) == 0 {
		return false
	}
	names, ok := fields["signed_field_names"]
	if !ok || names == "" {
		return false
	}
	expected := s.Sign(SigningString(names, fields))
	return hmac.Equal([]byte(expected), []byte(fields["signature"]))
}

// DecodeEsewaPayload turns the callback's base64 `data` parameter into a flat
// field map. Non-string JSON values keep their literal text.
func DecodeEsewaPayload(data string) (map[string]string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("invalid esewa payload encoding: %w", err)
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("invalid esewa payload: %w", err)
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			fields[k] = str
			continue
		}
		fields[k] = string(v)
	}
	return fields, nil
}

// EsewaClient queries eSewa's transaction status endpoint.
type EsewaClient struct {
	statusURL  string
	httpClient *http.Client
}

func NewEsewaClient(cfg *config.Config) *EsewaClient {
	return &EsewaClient{
		statusURL:  cfg.EsewaStatusURL,
		httpClient: newGatewayHTTPClient(cfg.PaymentTimeout),
	}
}

type esewaStatusResponse struct {
	ProductCode     string `json:"product_code"`
	TransactionUUID string `json:"transaction_uuid"`
	TotalAmount     any    `json:"total_amount"`
	Status          string `json:"status"`
	RefID           string `json:"ref_id"`
}

func (c *EsewaClient) status(ctx context.Context, productCode, totalAmount, transactionUUID string) (*esewaStatusResponse, []byte, error) {
	q := url.Values{}
	q.Set("product_code", productCode)
	q.Set("total_amount", totalAmount)
	q.Set("transaction_uuid", transactionUUID)

	sep := "?"
	if strings.Contains(c.statusURL, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL+sep+q.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build esewa status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("esewa status request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read esewa status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, raw, &ProviderError{Provider: models.ProviderEsewa, Status: resp.StatusCode, Message: "eSewa status check failed"}
	}

	var out esewaStatusResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, raw, fmt.Errorf("failed to decode esewa status response: %w", err)
	}
	return &out, raw, nil
}

// EsewaService builds signed form posts and settles signed callbacks.
// A callback's own COMPLETE status is confirmed by a status query before
// the subscription is activated.
type EsewaService struct {
	engine  *ReconciliationEngine
	store   store.Store
	signer  *EsewaSigner
	client  *EsewaClient
	cfg     *config.Config
	metrics *metrics.Payments
}

func NewEsewaService(engine *ReconciliationEngine, st store.Store, client *EsewaClient, cfg *config.Config, m *metrics.Payments) *EsewaService {
	return &EsewaService{
		engine:  engine,
		store:   st,
		signer:  NewEsewaSigner(cfg.EsewaSecretKey),
		client:  client,
		cfg:     cfg,
		metrics: m,
	}
}

func (s *EsewaService) Initiate(ctx context.Context, userID uuid.UUID, plan *models.Plan) (*dto.EsewaInitiateResponse, error) {
	if !s.cfg.EsewaConfigured() {
		return nil, NotConfiguredError(models.ProviderEsewa)
	}

	sub, payment, err := s.engine.CreatePendingPayment(ctx, userID, plan, models.ProviderEsewa)
	if err != nil {
		return nil, err
	}

	transactionUUID := payment.ID.String()
	if err := s.store.UpdatePaymentDetails(ctx, payment.ID, store.PaymentDetails{ReferenceID: &transactionUUID}); err != nil {
		err = fmt.Errorf("failed to store esewa reference: %w", err)
		if ferr := s.engine.FinalizeFailure(ctx, payment, nil); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, err
	}

	totalAmount := formatAmount(payment.AmountNPR)
	signed := map[string]string{
		"total_amount":     totalAmount,
		"transaction_uuid": transactionUUID,
		"product_code":     s.cfg.EsewaMerchantCode,
	}
	serverURL := strings.TrimRight(s.cfg.ServerURL, "/")

	return &dto.EsewaInitiateResponse{
		FormURL: s.cfg.EsewaFormURL,
		Fields: map[string]string{
			"amount":                  totalAmount,
			"tax_amount":              "0",
			"total_amount":            totalAmount,
			"transaction_uuid":        transactionUUID,
			"product_code":            s.cfg.EsewaMerchantCode,
			"product_service_charge":  "0",
			"product_delivery_charge": "0",
			"success_url":             serverURL + "/api/v1/payments/esewa/callback",
			"failure_url":             serverURL + "/api/v1/payments/esewa/failure",
			"signed_field_names":      esewaSignedFieldNames,
			"signature":               s.signer.Sign(SigningString(esewaSignedFieldNames, signed)),
		},
		PaymentID:      payment.ID,
		SubscriptionID: sub.ID,
	}, nil
}

func (s *EsewaService) Callback(ctx context.Context, data string) (Outcome, error) {
	outcome, err := s.callback(ctx, data)
	s.metrics.Callbacks.WithLabelValues(string(models.ProviderEsewa), string(outcome)).Inc()
	return outcome, err
}

func (s *EsewaService) callback(ctx context.Context, data string) (Outcome, error) {
	if !s.cfg.EsewaConfigured() {
		return OutcomeFailed, NotConfiguredError(models.ProviderEsewa)
	}

	fields, err := DecodeEsewaPayload(data)
	if err != nil {
		slog.Warn("esewa callback payload rejected", "provider", string(models.ProviderEsewa), "error", err.Error())
		return OutcomeFailed, nil
	}
	if !s.signer.Verify(fields) {
		slog.Warn("esewa callback signature mismatch",
			"provider", string(models.ProviderEsewa),
			"transaction_uuid", fields["transaction_uuid"],
		)
		return OutcomeFailed, nil
	}

	payment, err := s.store.FindPaymentByReference(ctx, fields["transaction_uuid"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("esewa callback for unknown transaction", "transaction_uuid", fields["transaction_uuid"])
			return OutcomeNotFound, nil
		}
		return OutcomeFailed, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment.Provider != models.ProviderEsewa {
		slog.Warn("esewa callback references non-esewa payment", "payment_id", payment.ID.String())
		return OutcomeNotFound, nil
	}

	callbackEvidence := esewaEvidence(fields)
	if fields["status"] != esewaStatusComplete {
		if err := s.engine.FinalizeFailure(ctx, payment, callbackEvidence); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeFailed, nil
	}

	// Query with the stored amount and configured merchant, not the callback's.
	status, raw, err := s.client.status(ctx, s.cfg.EsewaMerchantCode, formatAmount(payment.AmountNPR), payment.ID.String())
	if err != nil || status.Status != esewaStatusComplete {
		if err != nil {
			slog.Error("esewa status check failed",
				"payment_id", payment.ID.String(),
				"provider", string(models.ProviderEsewa),
				"action", "status",
				"error", err.Error(),
			)
		}
		ev := evidence(raw)
		if ev == nil {
			ev = callbackEvidence
		}
		if ferr := s.engine.FinalizeFailure(ctx, payment, ev); ferr != nil {
			return OutcomeFailed, ferr
		}
		return OutcomeFailed, nil
	}

	if err := s.engine.FinalizeSuccess(ctx, payment, evidence(raw)); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeSuccess, nil
}

func esewaEvidence(fields map[string]string) datatypes.JSON {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
