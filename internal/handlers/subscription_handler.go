package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type SubscriptionHandler struct {
	plans  *services.PlanService
	gate   *services.AccessGate
	khalti *services.KhaltiService
	esewa  *services.EsewaService
	manual *services.ManualPaymentService
}

func NewSubscriptionHandler(
	plans *services.PlanService,
	gate *services.AccessGate,
	khalti *services.KhaltiService,
	esewa *services.EsewaService,
	manual *services.ManualPaymentService,
) *SubscriptionHandler {
	return &SubscriptionHandler{plans: plans, gate: gate, khalti: khalti, esewa: esewa, manual: manual}
}

func (h *SubscriptionHandler) Plans(c *fiber.Ctx) error {
	plans, err := h.plans.List(c.UserContext())
	if err != nil {
		return serviceError(c, "", err)
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// Me returns the caller's latest subscription with its plan, or null.
func (h *SubscriptionHandler) Me(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	sub, err := h.gate.CurrentSubscription(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			return c.JSON(fiber.Map{"subscription": nil})
		}
		return serviceError(c, "", err)
	}

	resp := dto.SubscriptionResponse{Subscription: *sub}
	plan, err := h.plans.Get(c.UserContext(), sub.PlanID)
	switch {
	case err == nil:
		resp.Plan = plan
	case !errors.Is(err, services.ErrPlanNotFound):
		return serviceError(c, "", err)
	}
	return c.JSON(fiber.Map{"subscription": resp})
}

func (h *SubscriptionHandler) Access(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	ok, err := h.gate.HasActiveAccess(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, "", err)
	}
	return c.JSON(dto.AccessResponse{HasAccess: ok})
}

// Subscribe starts a payment on the requested channel and returns that
// channel's handoff.
func (h *SubscriptionHandler) Subscribe(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.SubscribeRequest
	if err := bindBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	provider := models.PaymentProvider(req.Provider)
	plan, err := h.plans.Resolve(c.UserContext(), req.PlanID)
	if err != nil {
		return serviceError(c, provider, err)
	}

	resp := dto.SubscribeResponse{Provider: provider}
	switch provider {
	case models.ProviderKhalti:
		resp.Khalti, err = h.khalti.Initiate(c.UserContext(), userID, plan)
		resp.NextSteps = "Redirect to the Khalti payment_url to complete payment."
	case models.ProviderEsewa:
		resp.Esewa, err = h.esewa.Initiate(c.UserContext(), userID, plan)
		resp.NextSteps = "Submit the eSewa fields to form_url to complete payment."
	case models.ProviderManual:
		resp.Manual, err = h.manual.Request(c.UserContext(), userID, plan, req.Note, req.ProofURL)
		resp.NextSteps = "Payment submitted. Access is activated once an admin approves it."
	default:
		err = services.ErrInvalidProvider
	}
	if err != nil {
		return serviceError(c, provider, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}
