package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/apperror"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/repository"
	"github.com/iliyamo/tennis-court-reservation/internal/service"
)

// CourtRepository persists tennis courts.
type CourtRepository interface {
	Create(ctx context.Context, c *model.TennisCourt) error
	GetByID(ctx context.Context, id uint64) (*model.TennisCourt, error)
	ListAll(ctx context.Context) ([]model.TennisCourt, error)
	Update(ctx context.Context, id uint64, name string) (*model.TennisCourt, error)
	Delete(ctx context.Context, id uint64) error
}

// CourtHandler serves tennis courts.  Writes require ADMIN and drop the
// public response cache.
type CourtHandler struct {
	Courts    CourtRepository
	Schedules *service.ScheduleService
	Cache     *middleware.ResponseCache
}

func NewCourtHandler(courts CourtRepository, schedules *service.ScheduleService, cache *middleware.ResponseCache) *CourtHandler {
	if courts == nil || schedules == nil {
		panic("nil dependency passed to NewCourtHandler")
	}
	return &CourtHandler{Courts: courts, Schedules: schedules, Cache: cache}
}

type courtReq struct {
	Name string `json:"name"`
}

type courtWithSchedules struct {
	*model.TennisCourt
	Schedules []model.Schedule `json:"schedules"`
}

func courtError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("Tennis Court not found.")
	case errors.Is(err, repository.ErrConflict):
		return apperror.InvalidArgument("Tennis Court still has schedule slots.")
	}
	return apperror.Storage("tennis court storage failed", err)
}

// ListCourts handles GET /v1/tennis-courts.
func (h *CourtHandler) ListCourts(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	items, err := h.Courts.ListAll(ctx)
	if err != nil {
		return writeError(c, courtError(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetCourt handles GET /v1/tennis-courts/:id.
func (h *CourtHandler) GetCourt(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	court, err := h.Courts.GetByID(ctx, id)
	if err != nil {
		return writeError(c, courtError(err))
	}
	return c.JSON(http.StatusOK, court)
}

// GetCourtWithSchedules handles GET /v1/tennis-courts/:id/schedules.
func (h *CourtHandler) GetCourtWithSchedules(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	court, err := h.Courts.GetByID(ctx, id)
	if err != nil {
		return writeError(c, courtError(err))
	}
	slots, err := h.Schedules.ListSlotsForCourt(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, courtWithSchedules{TennisCourt: court, Schedules: slots})
}

// CreateCourt handles POST /v1/tennis-courts.
func (h *CourtHandler) CreateCourt(c echo.Context) error {
	var body courtReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	court := &model.TennisCourt{Name: name}
	if err := h.Courts.Create(ctx, court); err != nil {
		return writeError(c, courtError(err))
	}
	h.Cache.Invalidate(ctx)
	return c.JSON(http.StatusCreated, court)
}

// UpdateCourt handles PUT /v1/tennis-courts/:id.
func (h *CourtHandler) UpdateCourt(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var body courtReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	court, err := h.Courts.Update(ctx, id, name)
	if err != nil {
		return writeError(c, courtError(err))
	}
	h.Cache.Invalidate(ctx)
	return c.JSON(http.StatusOK, court)
}

// DeleteCourt handles DELETE /v1/tennis-courts/:id.  A court with slots
// cannot be deleted.
func (h *CourtHandler) DeleteCourt(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Courts.Delete(ctx, id); err != nil {
		return writeError(c, courtError(err))
	}
	h.Cache.Invalidate(ctx)
	return c.NoContent(http.StatusNoContent)
}
