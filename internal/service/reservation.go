package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/tennis-court-reservation/internal/apperror"
	"github.com/iliyamo/tennis-court-reservation/internal/clock"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/queue"
	"github.com/iliyamo/tennis-court-reservation/internal/repository"
)

// publishTimeout bounds how long a committed operation waits on the broker.
const publishTimeout = 3 * time.Second

// ReservationService owns the reservation lifecycle: booking, cancellation
// and rescheduling.  Every mutating call runs in one transaction so the
// slot-exclusivity check and the insert, and both writes of a reschedule,
// commit or roll back together.
type ReservationService struct {
	stores Stores
	tx     Transactor
	clock  clock.Clock
	events EventPublisher
}

// NewReservationService wires the lifecycle manager.  stores is used for
// reads outside a transaction.  events may be nil to disable publishing.
func NewReservationService(stores Stores, tx Transactor, clk clock.Clock, events EventPublisher) *ReservationService {
	if stores.Guests == nil || stores.Schedules == nil || stores.Reservations == nil || tx == nil || clk == nil {
		panic("nil dependency passed to NewReservationService")
	}
	return &ReservationService{stores: stores, tx: tx, clock: clk, events: events}
}

// BookReservation reserves a slot for a guest at the fixed fee.  Not
// idempotent: a retry fails with AlreadyExists because the first call now
// holds the slot.
func (s *ReservationService) BookReservation(ctx context.Context, guestID, scheduleID uint64) (*model.Reservation, error) {
	var booked *model.Reservation
	err := s.tx.WithinTx(ctx, func(st Stores) error {
		var err error
		booked, err = s.book(ctx, st, guestID, scheduleID, nil)
		return err
	})
	if err != nil {
		return nil, apperror.Storage("failed to book reservation", err)
	}
	s.publish(ctx, queue.EventReservationBooked, booked)
	return booked, nil
}

// book runs the booking rule chain inside an open transaction.
func (s *ReservationService) book(ctx context.Context, st Stores, guestID, scheduleID uint64, previousID *uint64) (*model.Reservation, error) {
	// Locking the slot row serialises concurrent bookings of the same slot.
	slot, err := st.Schedules.LockByID(ctx, scheduleID)
	if err != nil {
		return nil, slotLookupError(scheduleID, err)
	}

	existing, err := st.Reservations.ListBySchedule(ctx, slot.ID)
	if err != nil {
		return nil, apperror.Storage("failed to load slot reservations", err)
	}
	for i := range existing {
		if existing[i].Status() == model.StatusReadyToPlay {
			return nil, apperror.AlreadyExists("Reservation already exists.")
		}
	}

	if slot.StartDateTime.Before(s.clock.Now()) {
		return nil, apperror.InvalidArgument("It is forbidden to reserve on past.")
	}

	guest, err := st.Guests.GetByID(ctx, guestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Guest not found.")
		}
		return nil, apperror.Storage("failed to load guest", err)
	}

	r := &model.Reservation{
		GuestID:               guest.ID,
		ScheduleID:            slot.ID,
		State:                 model.ReadyToPlay{},
		ValueCents:            ReservationFeeCents,
		PreviousReservationID: previousID,
	}
	if err := st.Reservations.Create(ctx, r); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.AlreadyExists("Reservation already exists.")
		}
		return nil, apperror.Storage("failed to save reservation", err)
	}
	r.Schedule = slot
	r.Guest = guest
	return r, nil
}

// FindReservation returns a reservation with its slot attached.
func (s *ReservationService) FindReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, err := s.stores.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, reservationLookupError(err)
	}
	if slot, err := s.stores.Schedules.GetByID(ctx, r.ScheduleID); err == nil {
		r.Schedule = slot
	}
	return r, nil
}

// ListGuestReservations returns every reservation a guest has made.
func (s *ReservationService) ListGuestReservations(ctx context.Context, guestID uint64) ([]model.Reservation, error) {
	list, err := s.stores.Reservations.ListByGuest(ctx, guestID)
	if err != nil {
		return nil, apperror.Storage("failed to list reservations", err)
	}
	return list, nil
}

// CancelReservation cancels a READY_TO_PLAY reservation on a future slot and
// records the refund.  The returned reservation's ValueCents is the part of
// the fee that was kept.
func (s *ReservationService) CancelReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	var cancelled *model.Reservation
	err := s.tx.WithinTx(ctx, func(st Stores) error {
		r, err := st.Reservations.LockByID(ctx, id)
		if err != nil {
			return reservationLookupError(err)
		}
		slot, err := st.Schedules.GetByID(ctx, r.ScheduleID)
		if err != nil {
			return slotLookupError(r.ScheduleID, err)
		}
		now := s.clock.Now()
		if err := validateCancellation(r, slot, now); err != nil {
			return err
		}

		refund := ComputeRefund(now, slot.StartDateTime, r.ValueCents)
		r.ValueCents -= refund
		r.State = model.Cancelled{RefundCents: refund}
		if err := st.Reservations.Update(ctx, r); err != nil {
			return apperror.Storage("failed to cancel reservation", err)
		}
		r.Schedule = slot
		cancelled = r
		return nil
	})
	if err != nil {
		return nil, apperror.Storage("failed to cancel reservation", err)
	}
	s.publish(ctx, queue.EventReservationCancelled, cancelled)
	return cancelled, nil
}

func validateCancellation(r *model.Reservation, slot *model.Schedule, now time.Time) error {
	if r.Status() != model.StatusReadyToPlay {
		return apperror.InvalidArgument("Cannot cancel/reschedule because it's not in ready to play status.")
	}
	if !slot.StartDateTime.After(now) {
		return apperror.InvalidArgument("Can cancel/reschedule only future dates.")
	}
	return nil
}

// RescheduleReservation moves a READY_TO_PLAY reservation to another slot.
// The previous reservation becomes RESCHEDULED with its refund recorded and a
// new reservation is booked on newScheduleID through the full booking rule
// chain, pointing back at the previous one.  Both writes share a transaction:
// when the new booking fails the previous reservation is left unchanged.
//
// The previous slot's start time is not re-checked against now here, unlike
// CancelReservation; a reservation whose slot already started can still be
// moved (with a zero or 25% refund).
func (s *ReservationService) RescheduleReservation(ctx context.Context, previousID, newScheduleID uint64) (*model.Reservation, error) {
	var next, prev *model.Reservation
	err := s.tx.WithinTx(ctx, func(st Stores) error {
		var err error
		prev, err = st.Reservations.LockByID(ctx, previousID)
		if err != nil {
			return reservationLookupError(err)
		}
		if newScheduleID == prev.ScheduleID {
			return apperror.InvalidArgument("Cannot reschedule to the same slot.")
		}
		if prev.Status() != model.StatusReadyToPlay {
			return apperror.InvalidArgument("Cannot reschedule: The reserve its not ready to play.")
		}
		prevSlot, err := st.Schedules.GetByID(ctx, prev.ScheduleID)
		if err != nil {
			return slotLookupError(prev.ScheduleID, err)
		}
		refund := ComputeRefund(s.clock.Now(), prevSlot.StartDateTime, prev.ValueCents)

		next, err = s.book(ctx, st, prev.GuestID, newScheduleID, &prev.ID)
		if err != nil {
			return err
		}

		prev.ValueCents -= refund
		prev.State = model.Rescheduled{RefundCents: refund, NextReservationID: next.ID}
		if err := st.Reservations.Update(ctx, prev); err != nil {
			return apperror.Storage("failed to update previous reservation", err)
		}
		prev.Schedule = prevSlot
		return nil
	})
	if err != nil {
		return nil, apperror.Storage("failed to reschedule reservation", err)
	}
	s.publish(ctx, queue.EventReservationRescheduled, prev)
	s.publish(ctx, queue.EventReservationBooked, next)
	return next, nil
}

func reservationLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Reservation not found.")
	}
	return apperror.Storage("failed to load reservation", err)
}

// publish emits ev after commit.  Broker failures are logged and dropped:
// the reservation is already durable.
func (s *ReservationService) publish(ctx context.Context, kind string, r *model.Reservation) {
	if s.events == nil || r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, queue.NewReservationEvent(kind, r, s.clock.Now())); err != nil {
		log.Printf("reservation: publish %s for reservation_id=%d failed: %v", kind, r.ID, err)
	}
}
