package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

// RequireRole enforces role-based access control on top of Auth. The caller
// must be active and hold one of the allowed roles.
func RequireRole(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			account, _ := c.Get(AccountKey).(*domain.Account)
			if account == nil {
				return domain.ErrUnauthorized
			}
			if !account.IsActive() {
				return domain.ErrAccountRevoked
			}
			if _, ok := allowed[account.Role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
