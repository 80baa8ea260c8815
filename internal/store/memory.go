package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local tooling.
// Rows are copied in and out so callers never share memory with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	plans         map[uuid.UUID]models.Plan
	subscriptions map[uuid.UUID]models.Subscription
	subOrder      []uuid.UUID
	payments      map[uuid.UUID]models.Payment
	users         map[uuid.UUID]models.User
	tokens        map[string]models.RefreshToken
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:         make(map[uuid.UUID]models.Plan),
		subscriptions: make(map[uuid.UUID]models.Subscription),
		payments:      make(map[uuid.UUID]models.Payment),
		users:         make(map[uuid.UUID]models.User),
		tokens:        make(map[string]models.RefreshToken),
		now:           time.Now,
	}
}

// PutUser inserts or replaces a user.
func (s *MemoryStore) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.users[user.ID] = user
}

// PutSubscription inserts or replaces a subscription row, appending it to
// creation order when new.
func (s *MemoryStore) PutSubscription(sub models.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subscriptions[sub.ID]; !exists {
		s.subOrder = append(s.subOrder, sub.ID)
	}
	s.subscriptions[sub.ID] = sub
}

// PaymentCount and SubscriptionCount expose row totals for assertions.
func (s *MemoryStore) PaymentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payments)
}

func (s *MemoryStore) SubscriptionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscriptions)
}

func (s *MemoryStore) ListPlans(_ context.Context) ([]models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plans := make([]models.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].PriceNPR < plans[j].PriceNPR })
	return plans, nil
}

func (s *MemoryStore) GetPlan(_ context.Context, id uuid.UUID) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) UpsertPlanByName(_ context.Context, plan *models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.plans {
		if existing.Name == plan.Name {
			existing.PriceNPR = plan.PriceNPR
			existing.BillingCycle = plan.BillingCycle
			existing.Description = plan.Description
			existing.UpdatedAt = s.now()
			s.plans[id] = existing
			*plan = existing
			return nil
		}
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	plan.CreatedAt = s.now()
	plan.UpdatedAt = plan.CreatedAt
	s.plans[plan.ID] = *plan
	return nil
}

func (s *MemoryStore) CreatePending(_ context.Context, sub *models.Subscription, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.CreatedAt, sub.UpdatedAt = now, now
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.SubscriptionID = sub.ID
	payment.CreatedAt, payment.UpdatedAt = now, now

	s.subscriptions[sub.ID] = *sub
	s.subOrder = append(s.subOrder, sub.ID)
	s.payments[payment.ID] = *payment
	return nil
}

func (s *MemoryStore) GetPayment(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) FindPaymentByReference(_ context.Context, referenceID string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.ReferenceID != nil && *p.ReferenceID == referenceID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdatePaymentDetails(_ context.Context, id uuid.UUID, details PaymentDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return ErrNotFound
	}
	if details.ReferenceID != nil {
		p.ReferenceID = stringPtr(*details.ReferenceID)
	}
	if details.Note != nil {
		p.Note = stringPtr(*details.Note)
	}
	if details.ProofURL != nil {
		p.ProofURL = stringPtr(*details.ProofURL)
	}
	p.UpdatedAt = s.now()
	s.payments[id] = p
	return nil
}

func (s *MemoryStore) ListPayments(_ context.Context, filter PaymentFilter) ([]models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var subSet map[uuid.UUID]bool
	if filter.SubscriptionIDs != nil {
		subSet = make(map[uuid.UUID]bool, len(filter.SubscriptionIDs))
		for _, id := range filter.SubscriptionIDs {
			subSet[id] = true
		}
	}

	payments := []models.Payment{}
	for _, p := range s.payments {
		if filter.Provider != "" && p.Provider != filter.Provider {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if subSet != nil && !subSet[p.SubscriptionID] {
			continue
		}
		payments = append(payments, p)
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })
	return payments, nil
}

func (s *MemoryStore) GetSubscription(_ context.Context, id uuid.UUID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) FindLatestSubscription(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.subOrder) - 1; i >= 0; i-- {
		sub := s.subscriptions[s.subOrder[i]]
		if sub.UserID == userID {
			return &sub, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListSubscriptions(_ context.Context, ids []uuid.UUID) ([]models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := make([]models.Subscription, 0, len(ids))
	for _, id := range ids {
		if sub, ok := s.subscriptions[id]; ok {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (s *MemoryStore) ListSubscriptionIDsForUser(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []uuid.UUID{}
	for _, id := range s.subOrder {
		if s.subscriptions[id].UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) UpdateSubscriptionStatus(_ context.Context, id uuid.UUID, status models.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status
	sub.UpdatedAt = s.now()
	s.subscriptions[id] = sub
	return nil
}

func (s *MemoryStore) ApplyTransition(_ context.Context, t Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[t.PaymentID]
	if !ok {
		return ErrNotFound
	}
	sub, ok := s.subscriptions[t.SubscriptionID]
	if !ok {
		return ErrNotFound
	}

	now := s.now()
	payment.Status = t.PaymentStatus
	if len(t.GatewayPayload) > 0 {
		payment.GatewayPayload = t.GatewayPayload
	}
	payment.UpdatedAt = now
	sub.Status = t.SubscriptionStatus
	if t.PeriodEnd != nil {
		sub.CurrentPeriodEnd = *t.PeriodEnd
	}
	sub.UpdatedAt = now

	s.payments[payment.ID] = payment
	s.subscriptions[sub.ID] = sub
	return nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (s *MemoryStore) GetUsers(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = s.now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) UpsertAdmin(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.Email == user.Email {
			u.Role = models.RoleAdmin
			u.UpdatedAt = s.now()
			s.users[id] = u
			return nil
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.TokenHash]; exists {
		return ErrDuplicate
	}
	token.CreatedAt = s.now()
	s.tokens[token.TokenHash] = *token
	return nil
}

func (s *MemoryStore) ConsumeRefreshToken(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[tokenHash]
	if !ok || token.Revoked {
		return nil, ErrNotFound
	}
	token.Revoked = true
	s.tokens[tokenHash] = token
	return &token, nil
}

func (s *MemoryStore) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.tokens[tokenHash]; ok {
		token.Revoked = true
		s.tokens[tokenHash] = token
	}
	return nil
}

// RefreshTokenRevoked reports whether the token with tokenHash exists and is revoked.
func (s *MemoryStore) RefreshTokenRevoked(tokenHash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[tokenHash]
	return ok && token.Revoked
}

func stringPtr(s string) *string {
	return &s
}

var (
	_ Store    = (*MemoryStore)(nil)
	_ Store    = (*GormStore)(nil)
	_ Accounts = (*MemoryStore)(nil)
	_ Accounts = (*GormStore)(nil)
)
