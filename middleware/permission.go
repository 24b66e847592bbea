package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// RequireGlobalStaff admits only staff and superusers. It must run after
// JWTMiddleware.
func RequireGlobalStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		capability := CapabilityFrom(c)
		if !capability.IsAuthenticated() {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized: User ID not found", nil)
		}
		if !capability.IsGlobalStaff() {
			return JsonResponse(c, fiber.StatusForbidden, false, "You do not have permission to access this resource!", nil)
		}
		return c.Next()
	}
}
