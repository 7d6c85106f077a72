package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/medlane-ng/medlane-backend/internal/services"
)

// PaymentHandler receives webhooks from the payment-link provider. The
// signature is validated upstream by middleware.
type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// HandleWebhook settles the order referenced by the payment event.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	if err := h.payments.ProcessWebhook(c.Body()); err != nil {
		log.Printf("❌ Payment webhook failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "webhook rejected"})
	}
	return c.SendStatus(fiber.StatusOK)
}
