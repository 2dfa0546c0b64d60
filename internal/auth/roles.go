package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/medbook/support-engine/internal/domain"
	apperrors "github.com/medbook/support-engine/pkg/util"
)

// RequireSupport allows only support-role accounts.
func RequireSupport() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !domain.IsSupportRole(principal.User.Role) {
			return apperrors.NewForbidden("support role required")
		}
		return c.Next()
	}
}

// RequireSuperAdmin restricts a route to super administrators.
func RequireSuperAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.User.Role != domain.RoleSuperAdmin {
			return apperrors.NewForbidden("super admin role required")
		}
		return c.Next()
	}
}
