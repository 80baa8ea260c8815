package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callbackSignedFields = "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names"

func TestEsewaSignerRejectsForeignSecret(t *testing.T) {
	fields := map[string]string{
		"total_amount":       "499.00",
		"transaction_uuid":   "abc123",
		"product_code":       "EPAYTEST",
		"signed_field_names": "total_amount,transaction_uuid,product_code",
	}
	msg := SigningString(fields["signed_field_names"], fields)
	require.Equal(t, "total_amount=499.00,transaction_uuid=abc123,product_code=EPAYTEST", msg)

	fields["signature"] = NewEsewaSigner("S1").Sign(msg)

	assert.True(t, NewEsewaSigner("S1").Verify(fields))
	assert.False(t, NewEsewaSigner("S2").Verify(fields))
}

func TestEsewaSignerKnownVector(t *testing.T) {
	signer := NewEsewaSigner("8gBm/:&EnhH.1/q")
	sig := signer.Sign("total_amount=100,transaction_uuid=11-201-13,product_code=EPAYTEST")
	assert.Equal(t, "5DZywcrTKD0gia/rsSMcrRHmJl+4Tbol6S+lWgdJ94E=", sig)

	assert.Equal(t, "pIHQE1akxJHy8+DulzVoO5f5VbyNR9jA4XPXQhS8n5A=",
		NewEsewaSigner("S1").Sign("total_amount=499.00,transaction_uuid=abc123,product_code=EPAYTEST"))
}

func TestEsewaSignerRequiresSignedFieldNames(t *testing.T) {
	assert.False(t, NewEsewaSigner("S1").Verify(map[string]string{"signature": "x"}))
}

func TestDecodeEsewaPayloadKeepsNumberText(t *testing.T) {
	raw := `{"status":"COMPLETE","total_amount":499.0,"transaction_uuid":"abc"}`
	fields, err := DecodeEsewaPayload(base64.StdEncoding.EncodeToString([]byte(raw)))
	require.NoError(t, err)
	assert.Equal(t, "499.0", fields["total_amount"])
	assert.Equal(t, "COMPLETE", fields["status"])
}

func TestDecodeEsewaPayloadRejectsGarbage(t *testing.T) {
	_, err := DecodeEsewaPayload("%%%not-base64")
	assert.Error(t, err)

	_, err = DecodeEsewaPayload(base64.StdEncoding.EncodeToString([]byte("not json")))
	assert.Error(t, err)
}

type esewaHarness struct {
	*fixture
	svc     *EsewaService
	gateway *fakeGateway

	mu      sync.Mutex
	queries []map[string]string
}

func newEsewaHarness(t *testing.T, statusBody string) *esewaHarness {
	t.Helper()
	h := &esewaHarness{fixture: newFixture(t)}
	h.gateway = newFakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		h.mu.Lock()
		h.queries = append(h.queries, map[string]string{
			"product_code":     q.Get("product_code"),
			"total_amount":     q.Get("total_amount"),
			"transaction_uuid": q.Get("transaction_uuid"),
		})
		h.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statusBody))
	})
	h.cfg.EsewaStatusURL = h.gateway.URL + "/api/epay/transaction/status/"
	h.svc = NewEsewaService(h.engine, h.store, NewEsewaClient(h.cfg), h.cfg, h.metrics)
	return h
}

func (h *esewaHarness) initiate(t *testing.T) (uuid.UUID, uuid.UUID, map[string]string) {
	t.Helper()
	resp, err := h.svc.Initiate(context.Background(), uuid.New(), h.standardPlan(t))
	require.NoError(t, err)
	return resp.PaymentID, resp.SubscriptionID, resp.Fields
}

// callbackData builds the base64 payload eSewa appends to success_url.
func (h *esewaHarness) callbackData(secret string, fields map[string]string) string {
	fields["signed_field_names"] = callbackSignedFields
	fields["signature"] = NewEsewaSigner(secret).Sign(SigningString(callbackSignedFields, fields))
	b, _ := json.Marshal(fields)
	return base64.StdEncoding.EncodeToString(b)
}

func TestEsewaInitiateBuildsSignedForm(t *testing.T) {
	h := newEsewaHarness(t, `{}`)
	paymentID, _, fields := h.initiate(t)

	assert.Equal(t, "499.00", fields["amount"])
	assert.Equal(t, "499.00", fields["total_amount"])
	assert.Equal(t, "0", fields["tax_amount"])
	assert.Equal(t, "0", fields["product_service_charge"])
	assert.Equal(t, "0", fields["product_delivery_charge"])
	assert.Equal(t, paymentID.String(), fields["transaction_uuid"])
	assert.Equal(t, "EPAYTEST", fields["product_code"])
	assert.Equal(t, "http://api.test/api/v1/payments/esewa/callback", fields["success_url"])
	assert.Equal(t, "http://api.test/api/v1/payments/esewa/failure", fields["failure_url"])
	assert.Equal(t, "total_amount,transaction_uuid,product_code", fields["signed_field_names"])
	assert.True(t, NewEsewaSigner(h.cfg.EsewaSecretKey).Verify(fields))

	stored := h.payment(t, paymentID)
	require.NotNil(t, stored.ReferenceID)
	assert.Equal(t, paymentID.String(), *stored.ReferenceID)
	assert.Equal(t, models.PaymentPending, stored.Status)
}

func TestEsewaInitiateNotConfigured(t *testing.T) {
	h := newEsewaHarness(t, `{}`)
	h.cfg.EsewaMerchantCode = ""

	_, err := h.svc.Initiate(context.Background(), uuid.New(), h.standardPlan(t))
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)
	assert.Zero(t, h.store.PaymentCount())
}

func TestEsewaCallbackCompleteActivates(t *testing.T) {
	h := newEsewaHarness(t, `{"status":"COMPLETE","ref_id":"0001"}`)
	paymentID, subID, _ := h.initiate(t)

	data := h.callbackData(h.cfg.EsewaSecretKey, map[string]string{
		"transaction_code": "000AWEO",
		"status":           "COMPLETE",
		"total_amount":     "499.0",
		"transaction_uuid": paymentID.String(),
		"product_code":     "EPAYTEST",
	})

	outcome, err := h.svc.Callback(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, models.SubscriptionActive, h.subscription(t, subID).Status)
	assert.Equal(t, models.PaymentSuccess, h.payment(t, paymentID).Status)

	// The status query uses the stored amount, not the callback's.
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.queries, 1)
	assert.Equal(t, map[string]string{
		"product_code":     "EPAYTEST",
		"total_amount":     "499.00",
		"transaction_uuid": paymentID.String(),
	}, h.queries[0])
}

func TestEsewaCallbackForgedSignatureNeverActivates(t *testing.T) {
	h := newEsewaHarness(t, `{"status":"COMPLETE"}`)
	paymentID, subID, _ := h.initiate(t)

	data := h.callbackData("not-the-merchant-secret", map[string]string{
		"transaction_code": "000AWEO",
		"status":           "COMPLETE",
		"total_amount":     "499.00",
		"transaction_uuid": paymentID.String(),
		"product_code":     "EPAYTEST",
	})

	outcome, err := h.svc.Callback(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.SubscriptionPastDue, h.subscription(t, subID).Status)
	assert.Equal(t, models.PaymentPending, h.payment(t, paymentID).Status)
	assert.Zero(t, h.gateway.Hits())
}

func TestEsewaCallbackTamperedAmountRejected(t *testing.T) {
	h := newEsewaHarness(t, `{"status":"COMPLETE"}`)
	paymentID, subID, _ := h.initiate(t)

	fields := map[string]string{
		"transaction_code": "000AWEO",
		"status":           "COMPLETE",
		"total_amount":     "499.00",
		"transaction_uuid": paymentID.String(),
		"product_code":     "EPAYTEST",
	}
	data := h.callbackData(h.cfg.EsewaSecretKey, fields)
	raw, _ := base64.StdEncoding.DecodeString(data)
	var obj map[string]string
	require.NoError(t, json.Unmarshal(raw, &obj))
	obj["total_amount"] = "1.00"
	b, _ := json.Marshal(obj)

	outcome, err := h.svc.Callback(context.Background(), base64.StdEncoding.EncodeToString(b))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.SubscriptionPastDue, h.subscription(t, subID).Status)
}

func TestEsewaCallbackMalformedPayload(t *testing.T) {
	h := newEsewaHarness(t, `{}`)
	h.initiate(t)

	outcome, err := h.svc.Callback(context.Background(), "!!!")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 1, h.store.PaymentCount())
}

func TestEsewaCallbackUnknownTransaction(t *testing.T) {
	h := newEsewaHarness(t, `{"status":"COMPLETE"}`)

	data := h.callbackData(h.cfg.EsewaSecretKey, map[string]string{
		"transaction_code": "000AWEO",
		"status":           "COMPLETE",
		"total_amount":     "499.00",
		"transaction_uuid": uuid.NewString(),
		"product_code":     "EPAYTEST",
	})

	outcome, err := h.svc.Callback(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
	assert.Zero(t, h.store.PaymentCount())
	assert.Zero(t, h.store.SubscriptionCount())
	assert.Zero(t, h.gateway.Hits())
}

func TestEsewaCallbackNotCompleteFails(t *testing.T) {
	h := newEsewaHarness(t, `{"status":"COMPLETE"}`)
	paymentID, subID, _ := h.initiate(t)

	data := h.callbackData(h.cfg.EsewaSecretKey, map[string]string{
		"transaction_code": "000AWEO",
		"status":           "PENDING",
		"total_amount":     "499.00",
		"transaction_uuid": paymentID.String(),
		"product_code":     "EPAYTEST",
	})

	outcome, err := h.svc.Callback(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.SubscriptionCanceled, h.subscription(t, subID).Status)
	assert.Equal(t, models.PaymentFailed, h.payment(t, paymentID).Status)
	assert.Zero(t, h.gateway.Hits())
}

func TestEsewaCallbackStatusQueryDisagrees(t *testing.T) {
	h := newEsewaHarness(t, `{"status":"PENDING"}`)
	paymentID, subID, _ := h.initiate(t)

	data := h.callbackData(h.cfg.EsewaSecretKey, map[string]string{
		"transaction_code": "000AWEO",
		"status":           "COMPLETE",
		"total_amount":     "499.00",
		"transaction_uuid": paymentID.String(),
		"product_code":     "EPAYTEST",
	})

	outcome, err := h.svc.Callback(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.SubscriptionCanceled, h.subscription(t, subID).Status)
	assert.Equal(t, 1, h.gateway.Hits())
}

func TestEsewaSignerWithoutSecretVerifiesNothing(t *testing.T) {
	fields := map[string]string{
		"total_amount":       "499.00",
		"transaction_uuid":   "abc123",
		"product_code":       "EPAYTEST",
		"signed_field_names": "total_amount,transaction_uuid,product_code",
	}
	fields["signature"] = NewEsewaSigner("").Sign(SigningString(fields["signed_field_names"], fields))

	assert.False(t, NewEsewaSigner("").Verify(fields))
}

func TestEsewaCallbackUnconfiguredNeverMutates(t *testing.T) {
	h := newEsewaHarness(t, `{"status":"NOT_FOUND"}`)
	paymentID, subID, _ := h.initiate(t)

	unconfigured := *h.cfg
	unconfigured.EsewaSecretKey = ""
	svc := NewEsewaService(h.engine, h.store, NewEsewaClient(&unconfigured), &unconfigured, h.metrics)

	data := h.callbackData("", map[string]string{
		"transaction_code": "000AWEO",
		"status":           "COMPLETE",
		"total_amount":     "499.00",
		"transaction_uuid": paymentID.String(),
		"product_code":     "EPAYTEST",
	})

	outcome, err := svc.Callback(context.Background(), data)
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.SubscriptionPastDue, h.subscription(t, subID).Status)
	assert.Equal(t, models.PaymentPending, h.payment(t, paymentID).Status)
	assert.Zero(t, h.gateway.Hits())
}

func TestEsewaInitiateReferenceFailureFailsPayment(t *testing.T) {
	h := newEsewaHarness(t, `{}`)
	st := detailsFailStore{MemoryStore: h.store, err: errors.New("db down")}
	svc := NewEsewaService(h.engine, st, NewEsewaClient(h.cfg), h.cfg, h.metrics)

	_, err := svc.Initiate(context.Background(), uuid.New(), h.standardPlan(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	payment := h.onlyPayment(t)
	assert.Equal(t, models.PaymentFailed, payment.Status)
	assert.Nil(t, payment.ReferenceID)
	assert.Equal(t, models.SubscriptionCanceled, h.subscription(t, payment.SubscriptionID).Status)
}
