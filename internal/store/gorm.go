package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of PostgreSQL via GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := s.db.WithContext(ctx).Order("price_npr ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (s *GormStore) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

func (s *GormStore) UpsertPlanByName(ctx context.Context, plan *models.Plan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"price_npr", "billing_cycle", "description", "updated_at"}),
	}).Create(plan).Error
}

func (s *GormStore) CreatePending(ctx context.Context, sub *models.Subscription, payment *models.Payment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		payment.SubscriptionID = sub.ID
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (s *GormStore) FindPaymentByReference(ctx context.Context, referenceID string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("reference_id = ?", referenceID).First(&payment).Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (s *GormStore) UpdatePaymentDetails(ctx context.Context, id uuid.UUID, details PaymentDetails) error {
	updates := map[string]interface{}{}
	if details.ReferenceID != nil {
		updates["reference_id"] = *details.ReferenceID
	}
	if details.Note != nil {
		updates["note"] = *details.Note
	}
	if details.ProofURL != nil {
		updates["proof_url"] = *details.ProofURL
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, error) {
	query := s.db.WithContext(ctx).Model(&models.Payment{})
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SubscriptionIDs != nil {
		if len(filter.SubscriptionIDs) == 0 {
			return []models.Payment{}, nil
		}
		query = query.Where("subscription_id IN ?", filter.SubscriptionIDs)
	}

	var payments []models.Payment
	if err := query.Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *GormStore) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *GormStore) FindLatestSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *GormStore) ListSubscriptions(ctx context.Context, ids []uuid.UUID) ([]models.Subscription, error) {
	if len(ids) == 0 {
		return []models.Subscription{}, nil
	}
	var subs []models.Subscription
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *GormStore) ListSubscriptionIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription ids: %w", err)
	}
	return ids, nil
}

func (s *GormStore) UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status models.SubscriptionStatus) error {
	result := s.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ApplyTransition(ctx context.Context, t Transition) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paymentUpdates := map[string]interface{}{"status": t.PaymentStatus}
		if len(t.GatewayPayload) > 0 {
			paymentUpdates["gateway_payload"] = t.GatewayPayload
		}
		result := tx.Model(&models.Payment{}).Where("id = ?", t.PaymentID).Updates(paymentUpdates)
		if result.Error != nil {
			return fmt.Errorf("failed to update payment: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		subUpdates := map[string]interface{}{"status": t.SubscriptionStatus}
		if t.PeriodEnd != nil {
			subUpdates["current_period_end"] = *t.PeriodEnd
		}
		result = tx.Model(&models.Subscription{}).Where("id = ?", t.SubscriptionID).Updates(subUpdates)
		if result.Error != nil {
			return fmt.Errorf("failed to update subscription: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *GormStore) GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *GormStore) UpsertAdmin(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"role": models.RoleAdmin}),
	}).Create(user).Error
}

func (s *GormStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *GormStore) ConsumeRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ? AND revoked = false", tokenHash).
			First(&token).Error; err != nil {
			return notFound(err)
		}
		return tx.Model(&token).Update("revoked", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *GormStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}
