package middleware

import (
	"context"
	"strings"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RoleLookup resolves the stored role of a user. A nil lookup disables the
// database check.
type RoleLookup interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) bool
}

// AdminRequired admits a caller when any of these hold:
// 1. the token's role claim is ADMIN
// 2. the token's email is listed in ADMIN_EMAILS
// 3. the stored user role is ADMIN
func AdminRequired(roles RoleLookup, cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(strings.ToLower(cfg.AdminEmails))

	return func(c *fiber.Ctx) error {
		userID, err := identity.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if identity.GetRole(c) == models.RoleAdmin {
			return c.Next()
		}
		if contains(adminEmails, strings.ToLower(identity.GetEmail(c))) {
			return c.Next()
		}
		if roles != nil && roles.IsAdmin(c.UserContext(), userID) {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	if val == "" {
		return false
	}
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
