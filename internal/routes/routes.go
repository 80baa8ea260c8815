package routes

import (
	"net/http"
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Deps bundles what Setup mounts. LimiterStorage and Metrics are optional.
type Deps struct {
	Auth          *handlers.AuthHandler
	Health        *handlers.HealthHandler
	Subscriptions *handlers.SubscriptionHandler
	Payments      *handlers.PaymentHandler
	Admin         *handlers.AdminHandler

	Roles          middleware.RoleLookup
	LimiterStorage fiber.Storage
	Metrics        http.Handler
}

func Setup(app *fiber.App, cfg *config.Config, d Deps) {
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics))
	}

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(newLimiter(60, d.LimiterStorage))

	api.Get("/health", d.Health.Check)

	v1 := api.Group("/v1")
	protected := middleware.JWTProtected(cfg)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := v1.Group("/auth")
	auth.Use(newLimiter(10, d.LimiterStorage))
	auth.Post("/register", d.Auth.Register)
	auth.Post("/login", d.Auth.Login)
	auth.Post("/refresh", d.Auth.Refresh)
	auth.Post("/logout", protected, d.Auth.Logout)

	v1.Get("/me", protected, d.Auth.Me)

	subs := v1.Group("/subscriptions")
	subs.Get("/plans", d.Subscriptions.Plans)
	subs.Get("/me", protected, d.Subscriptions.Me)
	subs.Get("/access", protected, d.Subscriptions.Access)
	subs.Post("/subscribe", protected, d.Subscriptions.Subscribe)

	// Gateway return URLs are opened by the user's browser without a token.
	payments := v1.Group("/payments")
	payments.Post("/khalti/initiate", protected, d.Payments.KhaltiInitiate)
	payments.Get("/khalti/callback", d.Payments.KhaltiCallback)
	payments.Post("/esewa/initiate", protected, d.Payments.EsewaInitiate)
	payments.Get("/esewa/callback", d.Payments.EsewaCallback)
	payments.Get("/esewa/failure", d.Payments.EsewaFailure)
	payments.Post("/manual/request", protected, d.Payments.ManualRequest)
	payments.Get("/manual/me", protected, d.Payments.ManualMine)

	admin := v1.Group("/admin", protected, middleware.AdminRequired(d.Roles, cfg))
	admin.Get("/payments", d.Admin.PendingPayments)
	admin.Post("/payments/:id/approve", d.Admin.Approve)
	admin.Post("/payments/:id/reject", d.Admin.Reject)
	admin.Get("/users", d.Admin.Users)
}

func newLimiter(max int, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		Storage:           storage,
	})
}
