package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/apperror"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/service"
)

// ReservationHandler exposes booking, cancellation and rescheduling.  A
// GUEST acts on their own reservations only; ADMIN acts for anyone.
type ReservationHandler struct {
	Reservations *service.ReservationService
}

func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil reservation service passed to NewReservationHandler")
	}
	return &ReservationHandler{Reservations: svc}
}

type bookReq struct {
	ScheduleID uint64 `json:"schedule_id"`
	GuestID    uint64 `json:"guest_id"` // ADMIN only; defaults to the caller
}

type reservationResp struct {
	ID                    uint64          `json:"id"`
	GuestID               uint64          `json:"guest_id"`
	ScheduleID            uint64          `json:"schedule_id"`
	Status                string          `json:"reservation_status"`
	ValueCents            uint32          `json:"value_cents"`
	RefundCents           *uint32         `json:"refund_value_cents,omitempty"`
	PreviousReservationID *uint64         `json:"previous_reservation_id,omitempty"`
	NextReservationID     *uint64         `json:"next_reservation_id,omitempty"`
	Schedule              *model.Schedule `json:"schedule,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func toReservationResp(r *model.Reservation) reservationResp {
	out := reservationResp{
		ID:                    r.ID,
		GuestID:               r.GuestID,
		ScheduleID:            r.ScheduleID,
		Status:                string(r.Status()),
		ValueCents:            r.ValueCents,
		PreviousReservationID: r.PreviousReservationID,
		Schedule:              r.Schedule,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	if refund, ok := r.RefundCents(); ok {
		out.RefundCents = &refund
	}
	if next, ok := r.NextReservationID(); ok {
		out.NextReservationID = &next
	}
	return out
}

var errForbidden = apperror.New(apperror.ErrForbidden, "forbidden")

// authorize loads the reservation and rejects a GUEST who does not hold it.
func (h *ReservationHandler) authorize(ctx context.Context, c echo.Context, id uint64) (*model.Reservation, error) {
	caller, ok := middleware.GuestID(c)
	if !ok {
		return nil, errForbidden
	}
	r, err := h.Reservations.FindReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.GuestID != caller && !middleware.IsAdmin(c) {
		return nil, errForbidden
	}
	return r, nil
}

// Book handles POST /v1/reservations.
func (h *ReservationHandler) Book(c echo.Context) error {
	caller, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body bookReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ScheduleID == 0 {
		return badRequest(c, "schedule_id is required")
	}
	guestID := caller
	if body.GuestID != 0 && body.GuestID != caller {
		if !middleware.IsAdmin(c) {
			return writeError(c, errForbidden)
		}
		guestID = body.GuestID
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	r, err := h.Reservations.BookReservation(ctx, guestID, body.ScheduleID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationResp(r))
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	r, err := h.authorize(ctx, c, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(r))
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if _, err := h.authorize(ctx, c, id); err != nil {
		return writeError(c, err)
	}
	r, err := h.Reservations.CancelReservation(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(r))
}

// Reschedule handles PUT /v1/reservations/:id/:scheduleId and returns the
// new reservation.
func (h *ReservationHandler) Reschedule(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	scheduleID, err := parseID(c, "scheduleId")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if _, err := h.authorize(ctx, c, id); err != nil {
		return writeError(c, err)
	}
	r, err := h.Reservations.RescheduleReservation(ctx, id, scheduleID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(r))
}

// Mine handles GET /v1/my-reservations.
func (h *ReservationHandler) Mine(c echo.Context) error {
	caller, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	list, err := h.Reservations.ListGuestReservations(ctx, caller)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]reservationResp, 0, len(list))
	for i := range list {
		items = append(items, toReservationResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
