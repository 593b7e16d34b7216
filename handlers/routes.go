// handlers/routes.go
package handlers

import (
	"strings"

	"creator-portal/config"
	"creator-portal/middleware"
	"creator-portal/services"
	"creator-portal/workers"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs. Services are built by the caller so
// background jobs can share them.
type Deps struct {
	Config        *config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	Applications  *services.ApplicationService
	Missions      *services.MissionService
	Notifications *services.NotificationService
	Streams       *services.StreamService
	Reconciler    *workers.CardReconciler
}

// SetupRoutes mounts the public, secured (/s), admin (/s/admin) and stream (/stream)
// surfaces. Each group is created once so its middleware runs once per request.
func SetupRoutes(app *fiber.App, d Deps) {
	admins := middleware.NewAllowlist(d.Config.AdminEmails)

	SetupSystemRoutes(app, d)

	secured := app.Group("/s", onlyUnder("/s", middleware.SessionMiddleware(d.Config.SessionSecret, d.Log)))
	secured.Get("/me", func(c *fiber.Ctx) error {
		return getMe(c, admins)
	})
	SetupApplicationRoutes(secured, d.Applications)
	SetupMissionRoutes(secured, d.Missions)
	SetupNotificationRoutes(secured, d.Notifications)

	admin := secured.Group("/admin", onlyUnder("/s/admin", middleware.AdminOnly(admins, d.Log)))
	SetupAdminRoutes(admin, d)

	stream := app.Group("/stream", middleware.StreamAuthMiddleware(d.Config.SessionSecret, d.Log))
	stream.Get("/me/application", d.Streams.StreamMyApplication)
	stream.Get("/me/notifications", d.Streams.StreamMyNotifications)
	stream.Get("/admin/applications", middleware.AdminOnly(admins, d.Log), d.Streams.StreamAdminQueue)
}

// onlyUnder runs h for prefix and paths below it. Group middleware is prefix-matched,
// so without this "/s" would also guard "/stream".
func onlyUnder(prefix string, h fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path != prefix && !strings.HasPrefix(path, prefix+"/") {
			return c.Next()
		}
		return h(c)
	}
}
