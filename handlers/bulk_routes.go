// handlers/bulk_routes.go
package handlers

import (
	"talent-registration-system/middleware"
	"talent-registration-system/models"
	"talent-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBulkRoutes(app *fiber.App, bulkService *services.BulkService) {
	// 🔐 Pools belong to sponsors; admins can act on any pool
	secured := app.Group("/bulk-registrations",
		middleware.RequireAuth(),
		middleware.RequireRole(models.RoleSponsor, models.RoleAdmin))

	secured.Post("/", bulkService.CreatePoolHandler)
	secured.Get("/:id", bulkService.GetPool)
	secured.Post("/:id/payment", bulkService.InitiatePoolPaymentHandler)
	secured.Post("/:id/participants", bulkService.AddParticipantHandler)
}
