// handlers/notification_routes.go
package handlers

import (
	"creator-portal/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(secured fiber.Router, s *services.NotificationService) {
	secured.Get("/me/notifications", s.ListMyNotifications)
	secured.Get("/me/notifications/counts", s.GetMyCounts)
	secured.Post("/me/notifications/viewed", s.MarkAllMyNotificationsViewed)
	secured.Patch("/notifications/:id/viewed", s.MarkNotificationViewed)
}
