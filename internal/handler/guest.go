package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/apperror"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/repository"
)

// GuestHandler manages guest profiles.  A guest sees and edits only their
// own profile; ADMIN sees everyone.
type GuestHandler struct {
	Guests GuestAccounts
}

func NewGuestHandler(g GuestAccounts) *GuestHandler { return &GuestHandler{Guests: g} }

func guestError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("Guest not found.")
	case errors.Is(err, repository.ErrConflict):
		return apperror.InvalidArgument("Guest still has reservations.")
	}
	return apperror.Storage("guest storage failed", err)
}

// selfOrAdmin resolves :id and rejects a GUEST asking for someone else.
func selfOrAdmin(c echo.Context) (uint64, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return 0, err
	}
	caller, ok := middleware.GuestID(c)
	if !ok {
		return 0, apperror.New(apperror.ErrForbidden, "forbidden")
	}
	if caller != id && !middleware.IsAdmin(c) {
		return 0, apperror.New(apperror.ErrForbidden, "forbidden")
	}
	return id, nil
}

// ListGuests handles GET /v1/guests.
func (h *GuestHandler) ListGuests(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	items, err := h.Guests.ListAll(ctx)
	if err != nil {
		return writeError(c, guestError(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// SearchGuests handles GET /v1/guests/search?name=.
func (h *GuestHandler) SearchGuests(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return badRequest(c, "name is required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	items, err := h.Guests.ListByName(ctx, name)
	if err != nil {
		return writeError(c, guestError(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetGuest handles GET /v1/guests/:id.
func (h *GuestHandler) GetGuest(c echo.Context) error {
	id, err := selfOrAdmin(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	g, err := h.Guests.GetByID(ctx, id)
	if err != nil {
		return writeError(c, guestError(err))
	}
	return c.JSON(http.StatusOK, g)
}

// UpdateGuest handles PUT /v1/guests/:id; only the name is editable.
func (h *GuestHandler) UpdateGuest(c echo.Context) error {
	id, err := selfOrAdmin(c)
	if err != nil {
		return writeError(c, err)
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	g, err := h.Guests.UpdateName(ctx, id, name)
	if err != nil {
		return writeError(c, guestError(err))
	}
	return c.JSON(http.StatusOK, g)
}

// DeleteGuest handles DELETE /v1/guests/:id.
func (h *GuestHandler) DeleteGuest(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Guests.Delete(ctx, id); err != nil {
		return writeError(c, guestError(err))
	}
	return c.NoContent(http.StatusNoContent)
}
