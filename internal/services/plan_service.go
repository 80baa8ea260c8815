package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/store"
	"github.com/google/uuid"
)

// DefaultPlans are upserted by name at boot.
var DefaultPlans = []models.Plan{
	{
		Name:         "Standard Learning",
		PriceNPR:     499,
		BillingCycle: models.BillingMonthly,
		Description:  "Access to notes, model questions, and recorded videos.",
	},
	{
		Name:         "Live + Learning",
		PriceNPR:     999,
		BillingCycle: models.BillingMonthly,
		Description:  "Everything in Standard, plus live sessions with tutors.",
	},
}

type PlanService struct {
	store store.Store
}

func NewPlanService(st store.Store) *PlanService {
	return &PlanService{store: st}
}

func (s *PlanService) List(ctx context.Context) ([]models.Plan, error) {
	return s.store.ListPlans(ctx)
}

// Resolve parses a client-supplied plan id and loads the plan.
func (s *PlanService) Resolve(ctx context.Context, rawID string) (*models.Plan, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInvalidPlanID
	}
	return s.Get(ctx, id)
}

func (s *PlanService) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return plan, nil
}

// SeedDefaults upserts DefaultPlans, keeping existing ids.
func (s *PlanService) SeedDefaults(ctx context.Context) error {
	for _, p := range DefaultPlans {
		plan := p
		if err := s.store.UpsertPlanByName(ctx, &plan); err != nil {
			return fmt.Errorf("failed to seed plan %q: %w", plan.Name, err)
		}
	}
	slog.Info("subscription plans seeded", "count", len(DefaultPlans))
	return nil
}
