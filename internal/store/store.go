// Package store is the persistence port for plans, subscriptions and payments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// PaymentFilter narrows ListPayments. Zero fields are ignored.
type PaymentFilter struct {
	Provider        models.PaymentProvider
	Status          models.PaymentStatus
	SubscriptionIDs []uuid.UUID
}

// PaymentDetails are the optional, channel-specific fields set after creation.
type PaymentDetails struct {
	ReferenceID *string
	Note        *string
	ProofURL    *string
}

// Transition moves a payment and its subscription together.
// PeriodEnd is applied only when non-nil.
type Transition struct {
	PaymentID          uuid.UUID
	PaymentStatus      models.PaymentStatus
	SubscriptionID     uuid.UUID
	SubscriptionStatus models.SubscriptionStatus
	PeriodEnd          *time.Time
	GatewayPayload     datatypes.JSON
}

type Store interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	UpsertPlanByName(ctx context.Context, plan *models.Plan) error

	// CreatePending inserts the subscription and payment together.
	CreatePending(ctx context.Context, sub *models.Subscription, payment *models.Payment) error

	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentByReference(ctx context.Context, referenceID string) (*models.Payment, error)
	UpdatePaymentDetails(ctx context.Context, id uuid.UUID, details PaymentDetails) error
	ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, error)

	GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindLatestSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, ids []uuid.UUID) ([]models.Subscription, error)
	ListSubscriptionIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status models.SubscriptionStatus) error

	// ApplyTransition updates both rows atomically.
	ApplyTransition(ctx context.Context, t Transition) error

	ListUsers(ctx context.Context) ([]models.User, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Accounts persists users and their refresh tokens.
type Accounts interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	// CreateUser returns ErrDuplicate when the email is taken.
	CreateUser(ctx context.Context, user *models.User) error
	// UpsertAdmin inserts user, or sets the ADMIN role on the row with the same email.
	UpsertAdmin(ctx context.Context, user *models.User) error

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// ConsumeRefreshToken revokes the unrevoked token with tokenHash and
	// returns it. ErrNotFound when there is none.
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}
