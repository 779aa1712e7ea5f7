package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/model"
)

const (
	ctxGuestID = "user_id"
	ctxRole    = "role"
)

// GuestID returns the authenticated guest id set by JWTAuth.
func GuestID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxGuestID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// IsAdmin reports whether the caller holds the ADMIN role.
func IsAdmin(c echo.Context) bool { return Role(c) == model.RoleAdmin }

// SetIdentity stores an identity the way JWTAuth does.  Tests use it to
// skip token signing.
func SetIdentity(c echo.Context, guestID uint64, role string) {
	c.Set(ctxGuestID, guestID)
	c.Set(ctxRole, role)
}

// identityKey is the rate-limit key fragment for the caller.
func identityKey(c echo.Context) string {
	if id, ok := GuestID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
