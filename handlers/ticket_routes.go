// handlers/ticket_routes.go
package handlers

import (
	"talent-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTicketRoutes(app *fiber.App, ticketService *services.TicketService) {
	// 🔓 Ticket sales are public; tickets mint when the payment settles
	app.Post("/tickets", ticketService.CreateOrderHandler)
	app.Get("/tickets/:id", ticketService.GetPurchase)
}
