package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/service"
)

// ScheduleHandler exposes the slot allocator.
type ScheduleHandler struct {
	Schedules *service.ScheduleService
	Cache     *middleware.ResponseCache
}

func NewScheduleHandler(schedules *service.ScheduleService, cache *middleware.ResponseCache) *ScheduleHandler {
	if schedules == nil {
		panic("nil schedule service passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Schedules: schedules, Cache: cache}
}

type createScheduleReq struct {
	TennisCourtID uint64    `json:"tennis_court_id"`
	StartDateTime time.Time `json:"start_date_time"` // RFC 3339
}

// CreateSchedule handles POST /v1/schedules.
func (h *ScheduleHandler) CreateSchedule(c echo.Context) error {
	var body createScheduleReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.TennisCourtID == 0 || body.StartDateTime.IsZero() {
		return badRequest(c, "tennis_court_id and start_date_time are required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	slot, err := h.Schedules.CreateSlot(ctx, body.TennisCourtID, body.StartDateTime)
	if err != nil {
		return writeError(c, err)
	}
	h.Cache.Invalidate(ctx)
	return c.JSON(http.StatusCreated, slot)
}

// GetSchedule handles GET /v1/schedules/:id.
func (h *ScheduleHandler) GetSchedule(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	slot, err := h.Schedules.GetSlot(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, slot)
}

// ListSchedules handles GET /v1/schedules?start=&end= with RFC 3339 bounds.
func (h *ScheduleHandler) ListSchedules(c echo.Context) error {
	start, err := parseQueryTime(c.QueryParam("start"))
	if err != nil {
		return badRequest(c, "start must be an RFC 3339 timestamp")
	}
	end, err := parseQueryTime(c.QueryParam("end"))
	if err != nil {
		return badRequest(c, "end must be an RFC 3339 timestamp")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	items, err := h.Schedules.ListSlotsInRange(ctx, start, end)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// parseQueryTime parses an RFC 3339 query value.  An unescaped "+02:00"
// offset arrives as " 02:00", so a single inner space is read as "+".
func parseQueryTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	return time.Parse(time.RFC3339, strings.Replace(raw, " ", "+", 1))
}
