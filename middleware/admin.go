// middleware/admin.go
package middleware

import (
	"strings"

	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Allowlist is the set of admin emails, lowercased.
type Allowlist map[string]struct{}

func NewAllowlist(emails []string) Allowlist {
	a := make(Allowlist, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			a[email] = struct{}{}
		}
	}
	return a
}

// Contains matches email case-insensitively.
func (a Allowlist) Contains(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	_, ok := a[email]
	return ok
}

// AdminOnly admits identities whose email is on the allowlist. It must run after
// SessionMiddleware or StreamAuthMiddleware.
func AdminOnly(allow Allowlist, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := utils.IdentityFrom(c)
		if !ok {
			return unauthorized(c, "missing session")
		}
		if !allow.Contains(identity.Email) {
			log.Warn("admin access denied", zap.String("user_id", identity.UserID), zap.String("path", c.Path()))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":    "admin access required",
				"redirect": "/login",
			})
		}
		return c.Next()
	}
}
