// Package router registers the HTTP routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/handler"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
)

// RegisterRoutes registers routes that need no authentication and no data.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the token endpoints under /v1/auth and /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// New access token, same refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Accepts a refresh_token body or a bearer; no JWT middleware.
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleGuest, model.RoleAdmin))
}

// RegisterPublic registers the read-only court and slot listings.  They run
// behind the response cache.
func RegisterPublic(e *echo.Echo, courts *handler.CourtHandler, schedules *handler.ScheduleHandler, cache *middleware.ResponseCache) {
	g := e.Group("/v1", cache.Middleware())
	g.GET("/tennis-courts", courts.ListCourts)
	g.GET("/tennis-courts/:id", courts.GetCourt)
	g.GET("/tennis-courts/:id/schedules", courts.GetCourtWithSchedules)
	g.GET("/schedules", schedules.ListSchedules)
	g.GET("/schedules/:id", schedules.GetSchedule)
}
