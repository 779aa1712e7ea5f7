package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/handler"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
)

// RegisterAdmin registers court, slot and guest management.  Profile reads
// and renames are open to the guest themselves; the handler checks that.
func RegisterAdmin(e *echo.Echo, courts *handler.CourtHandler, schedules *handler.ScheduleHandler, guests *handler.GuestHandler, jwtSecret string) {
	admin := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.POST("/tennis-courts", courts.CreateCourt)
	admin.PUT("/tennis-courts/:id", courts.UpdateCourt)
	admin.DELETE("/tennis-courts/:id", courts.DeleteCourt)
	admin.POST("/schedules", schedules.CreateSchedule)
	admin.GET("/guests", guests.ListGuests)
	admin.GET("/guests/search", guests.SearchGuests)
	admin.DELETE("/guests/:id", guests.DeleteGuest)

	self := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleGuest, model.RoleAdmin),
	)
	self.GET("/guests/:id", guests.GetGuest)
	self.PUT("/guests/:id", guests.UpdateGuest)
}
