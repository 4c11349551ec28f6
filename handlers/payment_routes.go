// handlers/payment_routes.go
package handlers

import (
	"talent-registration-system/middleware"
	"talent-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPaymentRoutes(app *fiber.App, paymentService *services.PaymentService) {
	// 🔔 Gateway-initiated path — authenticated by shared webhook token,
	// not by a user session
	app.Post("/payments/webhook", middleware.GatewayWebhookAuth(), paymentService.HandleWebhook)

	// 🔐 Client-initiated reconciliation and status polls
	secured := app.Group("/payments", middleware.RequireAuth())
	secured.Post("/verify", paymentService.VerifyPayment)
	secured.Get("/:reference", paymentService.GetPayment)
}
