package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/store"
	"github.com/google/uuid"
)

// ManualPaymentService handles bank-transfer style payments that an admin
// approves or rejects by hand.
type ManualPaymentService struct {
	engine *ReconciliationEngine
	store  store.Store
}

func NewManualPaymentService(engine *ReconciliationEngine, st store.Store) *ManualPaymentService {
	return &ManualPaymentService{engine: engine, store: st}
}

// Request creates the pending pair and attaches the optional note and proof link.
func (s *ManualPaymentService) Request(ctx context.Context, userID uuid.UUID, plan *models.Plan, note, proofURL string) (*dto.ManualPaymentResponse, error) {
	sub, payment, err := s.engine.CreatePendingPayment(ctx, userID, plan, models.ProviderManual)
	if err != nil {
		return nil, err
	}

	var details store.PaymentDetails
	if note = strings.TrimSpace(note); note != "" {
		details.Note = &note
	}
	if proofURL = strings.TrimSpace(proofURL); proofURL != "" {
		details.ProofURL = &proofURL
	}
	if details.Note != nil || details.ProofURL != nil {
		if err := s.store.UpdatePaymentDetails(ctx, payment.ID, details); err != nil {
			return nil, fmt.Errorf("failed to attach manual payment details: %w", err)
		}
	}

	return &dto.ManualPaymentResponse{PaymentID: payment.ID, SubscriptionID: sub.ID}, nil
}

// ListMine returns the user's manual payments still awaiting review.
func (s *ManualPaymentService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	subIDs, err := s.store.ListSubscriptionIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return s.store.ListPayments(ctx, store.PaymentFilter{
		Provider:        models.ProviderManual,
		Status:          models.PaymentPending,
		SubscriptionIDs: subIDs,
	})
}

// ListPending returns the admin review queue joined with subscription and user.
func (s *ManualPaymentService) ListPending(ctx context.Context) ([]dto.PendingManualPayment, error) {
	payments, err := s.store.ListPayments(ctx, store.PaymentFilter{
		Provider: models.ProviderManual,
		Status:   models.PaymentPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}

	subIDs := make([]uuid.UUID, 0, len(payments))
	for _, p := range payments {
		subIDs = append(subIDs, p.SubscriptionID)
	}
	subs, err := s.store.ListSubscriptions(ctx, subIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	subByID := make(map[uuid.UUID]models.Subscription, len(subs))
	userIDs := make([]uuid.UUID, 0, len(subs))
	for _, sub := range subs {
		subByID[sub.ID] = sub
		userIDs = append(userIDs, sub.UserID)
	}

	users, err := s.store.GetUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	userByID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	rows := make([]dto.PendingManualPayment, 0, len(payments))
	for _, p := range payments {
		row := dto.PendingManualPayment{Payment: p}
		if sub, ok := subByID[p.SubscriptionID]; ok {
			row.Subscription = &sub
			if u, ok := userByID[sub.UserID]; ok {
				row.User = &dto.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Approve activates the payment's subscription. Any payment id is accepted.
func (s *ManualPaymentService) Approve(ctx context.Context, adminID, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.FinalizeSuccess(ctx, payment, nil); err != nil {
		return nil, err
	}
	slog.Info("payment approved",
		"user_id", adminID.String(),
		"payment_id", payment.ID.String(),
		"provider", string(payment.Provider),
		"action", "approve",
	)
	return payment, nil
}

func (s *ManualPaymentService) Reject(ctx context.Context, adminID, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.FinalizeFailure(ctx, payment, nil); err != nil {
		return nil, err
	}
	slog.Info("payment rejected",
		"user_id", adminID.String(),
		"payment_id", payment.ID.String(),
		"provider", string(payment.Provider),
		"action", "reject",
	)
	return payment, nil
}

func (s *ManualPaymentService) load(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return payment, nil
}
