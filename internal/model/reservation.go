package model

import "time"

// ReservationStatus is the persisted form of a reservation's state.
type ReservationStatus string

const (
	StatusReadyToPlay ReservationStatus = "READY_TO_PLAY"
	StatusCancelled   ReservationStatus = "CANCELLED"
	StatusRescheduled ReservationStatus = "RESCHEDULED"
)

// ReservationState is the closed set of states a reservation can be in:
// ReadyToPlay, Cancelled or Rescheduled.  The refund only exists on the two
// terminal states, which keeps a cancelled reservation without a refund from
// being constructed.
type ReservationState interface {
	Status() ReservationStatus
	isReservationState()
}

// ReadyToPlay is the initial state of every reservation.
type ReadyToPlay struct{}

// Cancelled is terminal.  RefundCents is what was returned to the guest.
type Cancelled struct {
	RefundCents uint32
}

// Rescheduled is terminal.  NextReservationID points at the replacement.
type Rescheduled struct {
	RefundCents       uint32
	NextReservationID uint64
}

func (ReadyToPlay) Status() ReservationStatus { return StatusReadyToPlay }
func (Cancelled) Status() ReservationStatus   { return StatusCancelled }
func (Rescheduled) Status() ReservationStatus { return StatusRescheduled }

func (ReadyToPlay) isReservationState() {}
func (Cancelled) isReservationState()   {}
func (Rescheduled) isReservationState() {}

// Reservation records a guest's claim on a schedule slot.
// It corresponds to a row in the `reservations` table.
//
// Fields:
//  ID                    – primary key identifier.
//  GuestID               – guest holding the reservation.
//  ScheduleID            – slot being reserved (many reservations may point
//                          at one slot, at most one of them READY_TO_PLAY).
//  State                 – current state; see ReservationState.
//  ValueCents            – amount charged; after a cancel or reschedule it
//                          holds the part that was not refunded.
//  PreviousReservationID – set on a reservation created by a reschedule.
//  CreatedAt             – creation timestamp.
//  UpdatedAt             – last update timestamp.
type Reservation struct {
	ID                    uint64           // reservations.id
	GuestID               uint64           // reservations.guest_id
	ScheduleID            uint64           // reservations.schedule_id
	State                 ReservationState // reservations.status + refund_value_cents + next_reservation_id
	ValueCents            uint32           // reservations.value_cents
	PreviousReservationID *uint64          // reservations.previous_reservation_id (nullable)
	CreatedAt             time.Time        // reservations.created_at
	UpdatedAt             time.Time        // reservations.updated_at

	// Resolved for display; not persisted on the row.
	Schedule *Schedule
	Guest    *Guest
}

// Status is shorthand for r.State.Status().  A nil State reads as READY_TO_PLAY.
func (r *Reservation) Status() ReservationStatus {
	if r.State == nil {
		return StatusReadyToPlay
	}
	return r.State.Status()
}

// RefundCents returns the refunded amount and whether one was recorded.
func (r *Reservation) RefundCents() (uint32, bool) {
	switch s := r.State.(type) {
	case Cancelled:
		return s.RefundCents, true
	case Rescheduled:
		return s.RefundCents, true
	}
	return 0, false
}

// NextReservationID returns the replacement reservation of a rescheduled one.
func (r *Reservation) NextReservationID() (uint64, bool) {
	if s, ok := r.State.(Rescheduled); ok {
		return s.NextReservationID, true
	}
	return 0, false
}
