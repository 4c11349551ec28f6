// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
)

// GatewayWebhookAuth validates the shared token the payment gateway
// sends with each webhook delivery. An unauthenticated delivery is
// rejected before any payload parsing.
func GatewayWebhookAuth() fiber.Handler {
	expectedToken := os.Getenv("GATEWAY_WEBHOOK_TOKEN")
	if expectedToken == "" {
		log.Fatal("❌ GATEWAY_WEBHOOK_TOKEN is not set — cannot authenticate webhook deliveries")
	}

	return func(c *fiber.Ctx) error {
		token := c.Get("X-Webhook-Token")
		if token == "" {
			log.Printf("🚫 [WEBHOOK_AUTH] Missing X-Webhook-Token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "webhook authentication token missing",
			})
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Printf("❌ [WEBHOOK_AUTH] Invalid webhook token for %s (got prefix: %.6s...)", c.Path(), token)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid webhook authentication token",
			})
		}
		return c.Next()
	}
}
