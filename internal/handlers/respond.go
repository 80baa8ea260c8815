package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

var errInvalidBody = errors.New("Invalid request body")

// bindBody decodes and validates a JSON body into out.
func bindBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return errInvalidBody
	}
	return dto.Validate(out)
}

func unauthorized(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
}

func providerName(p models.PaymentProvider) string {
	switch p {
	case models.ProviderKhalti:
		return "Khalti"
	case models.ProviderEsewa:
		return "eSewa"
	default:
		return string(p)
	}
}

// serviceError maps service sentinels to HTTP responses. Anything unknown is
// logged and reported as a bare 500.
func serviceError(c *fiber.Ctx, provider models.PaymentProvider, err error) error {
	var perr *services.ProviderError
	switch {
	case errors.As(err, &perr):
		return errorJSON(c, fiber.StatusBadRequest, perr.Message)
	case errors.Is(err, services.ErrInvalidPlanID):
		return errorJSON(c, fiber.StatusBadRequest, "Invalid plan id")
	case errors.Is(err, services.ErrInvalidProvider):
		return errorJSON(c, fiber.StatusBadRequest, "Invalid payment provider")
	case errors.Is(err, services.ErrPlanNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Plan not found")
	case errors.Is(err, services.ErrPaymentNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Payment not found")
	case errors.Is(err, services.ErrGatewayNotConfigured):
		return errorJSON(c, fiber.StatusInternalServerError, providerName(provider)+" is not configured")
	}

	serviceLogError(c, provider, "request", err)
	return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
}

func serviceLogError(c *fiber.Ctx, provider models.PaymentProvider, action string, err error) {
	slog.Error("request failed",
		"request_id", requestID(c),
		"method", c.Method(),
		"path", c.Path(),
		"provider", string(provider),
		"action", action,
		"error", err.Error(),
	)
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
