package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/catalystschool/checkout/internal/pkg/checkout"
	"github.com/catalystschool/checkout/internal/pkg/payment"
)

var webhookSecret string

// SetWebhookSecret injects the shared webhook signing secret. Called once
// from application startup.
func SetWebhookSecret(secret string) {
	webhookSecret = secret
}

// HandlePaymentWebhook receives provider events. The signature is computed
// over the raw body, so the body must not be parsed before verification.
// Every delivery is acknowledged with 200 once it is durably logged;
// returning an error status would only trigger provider redelivery of an
// event we already recorded.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	raw := c.Body()
	signature := c.Get("X-Razorpay-Signature")
	eventID := c.Get("X-Razorpay-Event-Id")

	signatureValid := payment.VerifyWebhookSignature(raw, signature, webhookSecret)

	result, err := checkoutService.HandleWebhook(c.Context(), raw, eventID, signatureValid)
	if err != nil {
		if errors.Is(err, checkout.ErrInvalidSignature) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature", "message": "Webhook signature verification failed"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process webhook"})
	}

	resp := fiber.Map{"received": true}
	if result.Duplicate {
		resp["duplicate"] = true
	}
	return c.JSON(resp)
}
