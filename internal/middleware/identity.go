package middleware

// identity.go holds the context keys written by the JWT middleware and
// accessors for them. Anonymous callers have an empty user id.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-listings/internal/model"
)

const (
	KeyUserID = "user_id"
	KeyRole   = "role"
)

// UserID returns the authenticated user's id, or "".
func UserID(c echo.Context) string {
	s, _ := c.Get(KeyUserID).(string)
	return s
}

// Role returns the role claim, or "".
func Role(c echo.Context) string {
	s, _ := c.Get(KeyRole).(string)
	return s
}

// IsAdmin reports whether the caller holds the ADMIN role.
func IsAdmin(c echo.Context) bool {
	return Role(c) == model.RoleAdmin
}
