// handlers/registration_routes.go
package handlers

import (
	"talent-registration-system/middleware"
	"talent-registration-system/models"
	"talent-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRegistrationRoutes(app *fiber.App, regService *services.RegistrationService, locService *services.LocationService) {
	// 🔓 Public — region hints for the personal-info step
	app.Get("/locations/regions", locService.RegionsHandler)

	// 🔐 Contestant wizard — owner or admin only (enforced in handlers)
	secured := app.Group("/registrations", middleware.RequireAuth())

	secured.Get("/:id", regService.GetRegistration)
	secured.Put("/:id/steps/:step", regService.UpdateStepHandler)
	secured.Post("/:id/submit", regService.SubmitHandler)
	secured.Post("/:id/payment", regService.InitiateFeeHandler)
	secured.Post("/:id/media", regService.UploadMediaHandler)

	// ✅ Review decisions — admin only
	secured.Patch("/:id/status",
		middleware.RequireRole(models.RoleAdmin),
		regService.UpdateStatusHandler)
}
