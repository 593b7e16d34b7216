// utils/identity.go
package utils

import (
	"creator-portal/models"

	"github.com/gofiber/fiber/v2"
)

const identityLocal = "identity"

// SetIdentity attaches the session identity to the request.
func SetIdentity(c *fiber.Ctx, id models.Identity) {
	c.Locals(identityLocal, id)
	c.Locals("user_id", id.UserID)
}

// IdentityFrom returns the identity set by the session middleware.
func IdentityFrom(c *fiber.Ctx) (models.Identity, bool) {
	id, ok := c.Locals(identityLocal).(models.Identity)
	return id, ok && id.UserID != ""
}
