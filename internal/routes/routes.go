package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/medlane-ng/medlane-backend/internal/config"
	"github.com/medlane-ng/medlane-backend/internal/handlers"
	"github.com/medlane-ng/medlane-backend/internal/middleware"
)

// Deps bundles everything the route table needs.
type Deps struct {
	Config  *config.Config
	Webhook *handlers.WebhookHandler
	Payment *handlers.PaymentHandler
	Admin   *handlers.AdminHandler
	Health  *handlers.HealthHandler
	Redis   *redis.Client // nil disables webhook dedup
}

// SetupRoutes configures all API routes.
func SetupRoutes(app *fiber.App, deps Deps) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Medlane Backend!",
			"version": deps.Health.Version,
			"endpoints": fiber.Map{
				"health":          "/health",
				"whatsapp":        "/webhook/whatsapp",
				"payment_webhook": "/webhook/payment",
				"admin":           "/admin",
			},
		})
	})

	app.Get("/health", deps.Health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	dedupe := middleware.DedupeWebhook(deps.Redis, 24*time.Hour)
	if deps.Config.Twilio.ValidateSignature {
		webhooks.Post("/whatsapp",
			middleware.ValidateTwilioSignature(deps.Config.Twilio.AuthToken),
			dedupe,
			deps.Webhook.HandleWebhook)
	} else {
		// Development behind ngrok: the signature never matches the
		// forwarded URL
		webhooks.Post("/whatsapp", dedupe, deps.Webhook.HandleWebhook)
	}

	webhooks.Post("/payment",
		middleware.ValidatePaymentSignature(deps.Config.Payment.WebhookSecret),
		deps.Payment.HandleWebhook)

	// ========== ADMIN ROUTES ==========
	admin := app.Group("/admin",
		middleware.RequireAdminJWT(deps.Config.Admin.JWTSecret, deps.Config.Admin.JWTIssuer))
	admin.Get("/export/:entity", deps.Admin.Export)
	admin.Get("/sessions/stats", deps.Admin.SessionStats)
}
