// Package queue defines message payloads exchanged over the message broker
// and the RabbitMQ publisher and consumer that carry them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/tennis-court-reservation/internal/model"
)

// QueueName is the durable queue every reservation event is routed to.
const QueueName = "reservation.events"

// Event types carried in ReservationEvent.Type.
const (
	EventReservationBooked      = "reservation.booked"
	EventReservationCancelled   = "reservation.cancelled"
	EventReservationRescheduled = "reservation.rescheduled"
)

// ReservationEvent is published after a reservation is booked, cancelled or
// rescheduled.  It carries enough for downstream consumers to log, notify or
// feed analytics without querying the primary database.
type ReservationEvent struct {
	EventID               string  `json:"event_id"`
	Type                  string  `json:"type"`
	ReservationID         uint64  `json:"reservation_id"`
	GuestID               uint64  `json:"guest_id"`
	ScheduleID            uint64  `json:"schedule_id"`
	Status                string  `json:"status"`
	ValueCents            uint32  `json:"value_cents"`
	RefundCents           *uint32 `json:"refund_cents,omitempty"`
	PreviousReservationID *uint64 `json:"previous_reservation_id,omitempty"`
	NextReservationID     *uint64 `json:"next_reservation_id,omitempty"`
	StartsAt              string  `json:"starts_at,omitempty"`
	OccurredAt            string  `json:"occurred_at"`
}

// NewReservationEvent snapshots r into an event of the given type.
func NewReservationEvent(kind string, r *model.Reservation, at time.Time) ReservationEvent {
	ev := ReservationEvent{
		EventID:               uuid.NewString(),
		Type:                  kind,
		ReservationID:         r.ID,
		GuestID:               r.GuestID,
		ScheduleID:            r.ScheduleID,
		Status:                string(r.Status()),
		ValueCents:            r.ValueCents,
		PreviousReservationID: r.PreviousReservationID,
		OccurredAt:            at.UTC().Format(time.RFC3339),
	}
	if refund, ok := r.RefundCents(); ok {
		ev.RefundCents = &refund
	}
	if next, ok := r.NextReservationID(); ok {
		ev.NextReservationID = &next
	}
	if r.Schedule != nil {
		ev.StartsAt = r.Schedule.StartDateTime.UTC().Format(time.RFC3339)
	}
	return ev
}
