package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/store"
	"github.com/google/uuid"
)

const subscriptionStatusNone = "NONE"

type AdminService struct {
	store store.Store
}

func NewAdminService(st store.Store) *AdminService {
	return &AdminService{store: st}
}

// ListUsers reports every user with the status and plan of their latest
// subscription. The stored status is shown as is; lapse is applied only
// when the user themselves reads it.
func (s *AdminService) ListUsers(ctx context.Context) ([]dto.AdminUserRow, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	planByID := make(map[uuid.UUID]models.Plan, len(plans))
	for _, p := range plans {
		planByID[p.ID] = p
	}

	rows := make([]dto.AdminUserRow, 0, len(users))
	for _, u := range users {
		row := dto.AdminUserRow{
			ID:                 u.ID,
			Name:               u.Name,
			Email:              u.Email,
			Role:               u.Role,
			SubscriptionStatus: subscriptionStatusNone,
		}
		sub, err := s.store.FindLatestSubscription(ctx, u.ID)
		if err == nil {
			row.SubscriptionStatus = string(sub.Status)
			end := sub.CurrentPeriodEnd
			row.CurrentPeriodEnd = &end
			if plan, ok := planByID[sub.PlanID]; ok {
				name := plan.Name
				row.PlanName = &name
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to load subscription: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
