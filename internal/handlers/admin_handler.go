package handlers

import (
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AdminHandler struct {
	manual *services.ManualPaymentService
	admin  *services.AdminService
}

func NewAdminHandler(manual *services.ManualPaymentService, admin *services.AdminService) *AdminHandler {
	return &AdminHandler{manual: manual, admin: admin}
}

func (h *AdminHandler) PendingPayments(c *fiber.Ctx) error {
	rows, err := h.manual.ListPending(c.UserContext())
	if err != nil {
		return serviceError(c, models.ProviderManual, err)
	}
	return c.JSON(fiber.Map{"payments": rows})
}

func (h *AdminHandler) Approve(c *fiber.Ctx) error {
	adminID, paymentID, ok := h.actionIDs(c)
	if !ok {
		return nil
	}

	if _, err := h.manual.Approve(c.UserContext(), adminID, paymentID); err != nil {
		return serviceError(c, models.ProviderManual, err)
	}
	return c.JSON(fiber.Map{"status": "approved"})
}

func (h *AdminHandler) Reject(c *fiber.Ctx) error {
	adminID, paymentID, ok := h.actionIDs(c)
	if !ok {
		return nil
	}

	if _, err := h.manual.Reject(c.UserContext(), adminID, paymentID); err != nil {
		return serviceError(c, models.ProviderManual, err)
	}
	return c.JSON(fiber.Map{"status": "rejected"})
}

func (h *AdminHandler) Users(c *fiber.Ctx) error {
	rows, err := h.admin.ListUsers(c.UserContext())
	if err != nil {
		return serviceError(c, "", err)
	}
	return c.JSON(fiber.Map{"users": rows})
}

// actionIDs writes the error response itself and reports ok=false when the
// caller or the path id is unusable.
func (h *AdminHandler) actionIDs(c *fiber.Ctx) (adminID, paymentID uuid.UUID, ok bool) {
	adminID, err := identity.GetUserID(c)
	if err != nil {
		_ = unauthorized(c)
		return uuid.Nil, uuid.Nil, false
	}
	paymentID, err = uuid.Parse(c.Params("id"))
	if err != nil {
		// Malformed ids are reported like unknown ones.
		_ = errorJSON(c, fiber.StatusNotFound, "Payment not found")
		return uuid.Nil, uuid.Nil, false
	}
	return adminID, paymentID, true
}
