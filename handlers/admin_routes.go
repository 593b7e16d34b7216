// handlers/admin_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupAdminRoutes mounts the review queue, mission management and repair endpoints.
// The group is already behind AdminOnly.
func SetupAdminRoutes(admin fiber.Router, d Deps) {
	admin.Get("/applications", d.Applications.ListApplications)
	admin.Get("/applications/:user_id", d.Applications.GetApplication)
	admin.Post("/applications/:user_id/approve", d.Applications.ApproveApplication)
	admin.Post("/applications/:user_id/reject", d.Applications.RejectApplication)
	admin.Post("/applications/:user_id/revoke", d.Applications.RevokeApplication)

	admin.Post("/missions", d.Missions.CreateMission)
	admin.Get("/missions", d.Missions.ListMissions)
	admin.Patch("/missions/:id/status", d.Missions.UpdateMissionStatus)
	admin.Get("/missions/:id/acceptances", d.Missions.ListMissionAcceptances)
	admin.Post("/acceptances/:id/complete", d.Missions.CompleteAcceptance)

	admin.Post("/consistency/repair", func(c *fiber.Ctx) error {
		report, err := d.Reconciler.ReconcileOnce(c.UserContext())
		if err != nil {
			d.Log.Error("manual reconcile failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconcile failed"})
		}
		return c.JSON(report)
	})
}
