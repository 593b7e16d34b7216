// handlers/mission_routes.go
package handlers

import (
	"creator-portal/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMissionRoutes(secured fiber.Router, s *services.MissionService) {
	secured.Get("/missions", s.ListOpenMissions)
	secured.Post("/missions/:id/accept", s.AcceptMission)
	secured.Get("/me/missions", s.GetMyMissions)
}
