// handlers/auth_routes.go
package handlers

import (
	"talent-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(app *fiber.App, authService *services.AuthService) {
	auth := app.Group("/auth")

	auth.Post("/register", authService.StartRegistrationHandler)
	auth.Post("/verify-email", authService.VerifyEmailHandler)
	auth.Post("/set-password", authService.SetPasswordHandler)
	auth.Post("/login", authService.LoginHandler)
	auth.Post("/forgot-password", authService.ForgotPasswordHandler)
	auth.Post("/reset-password", authService.ResetPasswordHandler)
}
