// middleware/sse_auth.go
package middleware

import (
	"strings"

	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StreamAuthMiddleware validates the session token passed as ?token=, since
// EventSource cannot set headers.
//
// Usage:
//
//	app.Get("/stream/me/application", middleware.StreamAuthMiddleware(secret, log), streams.StreamMyApplication)
func StreamAuthMiddleware(secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token in query",
			})
		}

		identity, err := utils.ParseSessionToken(secret, token)
		if err != nil {
			log.Debug("stream session rejected", zap.String("path", c.Path()), zap.Error(err))
			return unauthorized(c, "invalid or expired session")
		}

		utils.SetIdentity(c, identity)
		return c.Next()
	}
}
