package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/handler"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
)

// RegisterReservations registers the reservation lifecycle endpoints.  Any
// authenticated role may call them; ownership is checked in the handler.
// limiter wraps the writes and may be a pass-through.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleGuest, model.RoleAdmin),
	)
	g.POST("/reservations", h.Book, limiter)
	g.GET("/reservations/:id", h.Get)
	g.DELETE("/reservations/:id", h.Cancel, limiter)
	g.PUT("/reservations/:id/:scheduleId", h.Reschedule, limiter)
	g.GET("/my-reservations", h.Mine)
}
