package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *store.MemoryStore
	metrics *metrics.Payments
	engine  *ReconciliationEngine
	gate    *AccessGate
	plans   *PlanService
	cfg     *config.Config
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	m := metrics.NewPayments()
	f := &fixture{
		store:   st,
		metrics: m,
		engine:  NewReconciliationEngine(st, m),
		gate:    NewAccessGate(st, m),
		plans:   NewPlanService(st),
		now:     fixedNow,
		cfg: &config.Config{
			ServerURL:         "http://api.test",
			ClientOrigin:      "http://app.test",
			KhaltiSecretKey:   "khalti-secret",
			EsewaSecretKey:    "8gBm/:&EnhH.1/q",
			EsewaMerchantCode: "EPAYTEST",
			EsewaFormURL:      "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
			PaymentTimeout:    2 * time.Second,
		},
	}
	clock := func() time.Time { return f.now }
	f.engine.SetClock(clock)
	f.gate.SetClock(clock)
	require.NoError(t, f.plans.SeedDefaults(context.Background()))
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) plan(t *testing.T, name string) *models.Plan {
	t.Helper()
	plans, err := f.plans.List(context.Background())
	require.NoError(t, err)
	for i := range plans {
		if plans[i].Name == name {
			return &plans[i]
		}
	}
	t.Fatalf("plan %q not seeded", name)
	return nil
}

func (f *fixture) standardPlan(t *testing.T) *models.Plan {
	return f.plan(t, "Standard Learning")
}

func (f *fixture) addUser(name, email string) uuid.UUID {
	id := uuid.New()
	f.store.PutUser(models.User{ID: id, Name: name, Email: email, Role: models.RoleStudent})
	return id
}

func (f *fixture) subscription(t *testing.T, id uuid.UUID) *models.Subscription {
	t.Helper()
	sub, err := f.store.GetSubscription(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func (f *fixture) payment(t *testing.T, id uuid.UUID) *models.Payment {
	t.Helper()
	p, err := f.store.GetPayment(context.Background(), id)
	require.NoError(t, err)
	return p
}

// fakeGateway serves handler and counts the requests that arrived.
type fakeGateway struct {
	*httptest.Server
	hits atomic.Int32
}

func newFakeGateway(t *testing.T, handler http.HandlerFunc) *fakeGateway {
	t.Helper()
	g := &fakeGateway{}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(g.Close)
	return g
}

func (g *fakeGateway) Hits() int {
	return int(g.hits.Load())
}

// detailsFailStore refuses every UpdatePaymentDetails call.
type detailsFailStore struct {
	*store.MemoryStore
	err error
}

func (s detailsFailStore) UpdatePaymentDetails(context.Context, uuid.UUID, store.PaymentDetails) error {
	return s.err
}

// onlyPayment returns the single payment row the fixture holds.
func (f *fixture) onlyPayment(t *testing.T) models.Payment {
	t.Helper()
	payments, err := f.store.ListPayments(context.Background(), store.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	return payments[0]
}
