package handlers

import (
	"context"
	"net/url"
	"strings"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	plans  *services.PlanService
	khalti *services.KhaltiService
	esewa  *services.EsewaService
	manual *services.ManualPaymentService
	cfg    *config.Config
}

func NewPaymentHandler(
	plans *services.PlanService,
	khalti *services.KhaltiService,
	esewa *services.EsewaService,
	manual *services.ManualPaymentService,
	cfg *config.Config,
) *PaymentHandler {
	return &PaymentHandler{plans: plans, khalti: khalti, esewa: esewa, manual: manual, cfg: cfg}
}

func (h *PaymentHandler) KhaltiInitiate(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.InitiatePaymentRequest
	if err := bindBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	plan, err := h.plans.Resolve(c.UserContext(), req.PlanID)
	if err != nil {
		return serviceError(c, models.ProviderKhalti, err)
	}

	resp, err := h.khalti.Initiate(c.UserContext(), userID, plan)
	if err != nil {
		return serviceError(c, models.ProviderKhalti, err)
	}
	return c.JSON(resp)
}

// KhaltiCallback is hit by the user's browser on return from Khalti.
func (h *PaymentHandler) KhaltiCallback(c *fiber.Ctx) error {
	pidx := strings.TrimSpace(c.Query("pidx"))
	if pidx == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Missing pidx")
	}
	return h.settle(c, models.ProviderKhalti, func(ctx context.Context) (services.Outcome, error) {
		return h.khalti.Callback(ctx, pidx)
	})
}

func (h *PaymentHandler) EsewaInitiate(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.InitiatePaymentRequest
	if err := bindBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	plan, err := h.plans.Resolve(c.UserContext(), req.PlanID)
	if err != nil {
		return serviceError(c, models.ProviderEsewa, err)
	}

	resp, err := h.esewa.Initiate(c.UserContext(), userID, plan)
	if err != nil {
		return serviceError(c, models.ProviderEsewa, err)
	}
	return c.JSON(resp)
}

func (h *PaymentHandler) EsewaCallback(c *fiber.Ctx) error {
	data := strings.TrimSpace(c.Query("data"))
	if data == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Missing data")
	}
	return h.settle(c, models.ProviderEsewa, func(ctx context.Context) (services.Outcome, error) {
		return h.esewa.Callback(ctx, data)
	})
}

// EsewaFailure is eSewa's failure_url. It carries no verifiable payload so
// nothing is recorded.
func (h *PaymentHandler) EsewaFailure(c *fiber.Ctx) error {
	return c.Redirect(h.dashboardURL(services.OutcomeFailed), fiber.StatusFound)
}

func (h *PaymentHandler) ManualRequest(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.ManualPaymentRequest
	if err := bindBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	plan, err := h.plans.Resolve(c.UserContext(), req.PlanID)
	if err != nil {
		return serviceError(c, models.ProviderManual, err)
	}

	resp, err := h.manual.Request(c.UserContext(), userID, plan, req.Note, req.ProofURL)
	if err != nil {
		return serviceError(c, models.ProviderManual, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *PaymentHandler) ManualMine(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	payments, err := h.manual.ListMine(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, models.ProviderManual, err)
	}
	return c.JSON(fiber.Map{"payments": payments})
}

// settle runs a callback and redirects the browser to the dashboard with its
// outcome. Internal errors still redirect, as failed.
func (h *PaymentHandler) settle(c *fiber.Ctx, provider models.PaymentProvider, run func(context.Context) (services.Outcome, error)) error {
	outcome, err := run(c.UserContext())
	if err != nil {
		if outcome == "" {
			outcome = services.OutcomeFailed
		}
		serviceLogError(c, provider, "callback", err)
	}
	return c.Redirect(h.dashboardURL(outcome), fiber.StatusFound)
}

func (h *PaymentHandler) dashboardURL(outcome services.Outcome) string {
	q := url.Values{}
	q.Set("payment", string(outcome))
	return strings.TrimRight(h.cfg.ClientOrigin, "/") + "/dashboard?" + q.Encode()
}
