package api

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"sjfulfillment/internal/common/auth"
	"sjfulfillment/internal/models"
)

// Role aliases kept local so handlers read naturally.
const (
	RoleAdmin         = models.RoleAdmin
	RoleMerchantAdmin = models.RoleMerchantAdmin
)

const claimsKey = "claims"

// JWTAuth verifies the bearer token and stores its claims on the request.
func JWTAuth(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"message": "missing authorization header"})
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"message": "invalid authorization header"})
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"message": "invalid or expired token"})
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// RequireRole rejects requests whose token role is not in the allowed set.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := claimsFrom(c)
		if claims == nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"message": "authentication required"})
		}
		for _, role := range roles {
			if claims.Role == role {
				return c.Next()
			}
		}
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"message": "insufficient permissions"})
	}
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	return claims
}
