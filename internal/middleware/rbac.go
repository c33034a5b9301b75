package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-results-api/internal/utils"
)

// RoleAdmin passes every role check.
const RoleAdmin = "admin"

// RequireRole ensures that the authenticated contact holds one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := map[string]struct{}{RoleAdmin: {}}
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("user_role").(string)
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(role))]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
