package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/user/darkpool/backend/internal/auth"
)

// Protected is a middleware function to verify JWT authentication.
func Protected(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization header format"})
		}

		claims, err := tokens.ValidateJWT(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		// Store user information in context for downstream handlers
		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)

		return c.Next()
	}
}

// AdminOnly restricts a route to the configured admin account. It must
// run after Protected.
func AdminOnly(adminUsername string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, ok := c.Locals("username").(string)
		if !ok || username != adminUsername {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Administrator access required"})
		}
		return c.Next()
	}
}
