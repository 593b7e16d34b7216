// handlers/application_routes.go
package handlers

import (
	"creator-portal/middleware"
	"creator-portal/services"
	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
)

// SetupApplicationRoutes mounts the creator's own application endpoints on the
// secured group.
func SetupApplicationRoutes(secured fiber.Router, s *services.ApplicationService) {
	secured.Get("/me/application", s.GetMyApplication)
	secured.Post("/me/application", s.SubmitMyApplication)
	secured.Post("/me/application/avatar", s.UploadMyAvatar)
	secured.Post("/me/application/seen", s.MarkMyApplicationSeen)
}

// getMe tells the client who is signed in and whether to show the admin entry point.
func getMe(c *fiber.Ctx, admins middleware.Allowlist) error {
	who, ok := utils.IdentityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing session", "redirect": "/login"})
	}
	return c.JSON(fiber.Map{
		"user_id":   who.UserID,
		"email":     who.Email,
		"name":      who.Name,
		"photo_url": who.PhotoURL,
		"is_admin":  admins.Contains(who.Email),
	})
}
