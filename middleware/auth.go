// middleware/auth.go
package middleware

import (
	"strings"

	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SessionMiddleware verifies the Bearer session token and attaches the identity.
// It is applied to every route under /s/.
func SessionMiddleware(secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if authHeader == "" || token == "" || token == authHeader {
			return unauthorized(c, "missing session token")
		}

		identity, err := utils.ParseSessionToken(secret, token)
		if err != nil {
			log.Debug("session rejected", zap.String("path", c.Path()), zap.Error(err))
			return unauthorized(c, "invalid or expired session")
		}

		utils.SetIdentity(c, identity)
		return c.Next()
	}
}

// unauthorized tells the client to send the user through login again.
func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":    msg,
		"redirect": "/login",
	})
}
