// handlers/system_routes.go
package handlers

import (
	"context"
	"strings"
	"time"

	"creator-portal/middleware"
	"creator-portal/models"
	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const devSessionTTL = 12 * time.Hour

// devNamespace keeps dev-login user ids stable per email.
var devNamespace = uuid.MustParse("6f1c1c2e-5d0b-4b8e-9d6e-3b7e6a0d4c11")

func SetupSystemRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "down"})
		}
		return c.JSON(fiber.Map{"status": "ok", "database": "up"})
	})

	app.Get("/metrics", middleware.ServiceTokenMiddleware(d.Config.MetricsToken), adaptor.HTTPHandler(promhttp.Handler()))

	if d.Config.IsDevelopment() {
		admins := middleware.NewAllowlist(d.Config.AdminEmails)
		app.Post("/auth/dev-login", devLogin(d.Config.SessionSecret, admins, d.Config.DevLoginAdmins))
	}
}

// devLogin stands in for the SSO popup in local runs. Allowlisted emails are refused
// unless allowAdmins is set.
func devLogin(secret string, admins middleware.Allowlist, allowAdmins bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email" validate:"required,email"`
			Name  string `json:"name" validate:"max=120"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := utils.ValidateStruct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if admins.Contains(email) && !allowAdmins {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "dev login is disabled for admin accounts"})
		}
		identity := models.Identity{
			UserID: uuid.NewSHA1(devNamespace, []byte(email)).String(),
			Email:  email,
			Name:   req.Name,
		}
		token, err := utils.IssueSessionToken(secret, identity, devSessionTTL)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to issue token"})
		}
		return c.JSON(fiber.Map{"token": token, "user": identity})
	}
}
