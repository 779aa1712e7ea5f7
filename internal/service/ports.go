// Package service holds the booking core: the schedule slot allocator, the
// refund policy and the reservation lifecycle manager.  It talks to storage
// only through the narrow interfaces in this file; the MySQL repositories and
// the in-memory store both satisfy them.
//
// Stores report a missing row with repository.ErrNotFound and a unique-key
// violation with repository.ErrDuplicate.  The service translates both into
// apperror kinds.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/queue"
)

// GuestLookup resolves guests by id.
type GuestLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.Guest, error)
}

// CourtLookup resolves tennis courts by id.
type CourtLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.TennisCourt, error)
}

// ScheduleStore persists schedule slots.
type ScheduleStore interface {
	Create(ctx context.Context, s *model.Schedule) error
	GetByID(ctx context.Context, id uint64) (*model.Schedule, error)
	// LockByID reads a slot and holds it against concurrent writers until
	// the surrounding transaction ends.
	LockByID(ctx context.Context, id uint64) (*model.Schedule, error)
	FindByCourtAndStart(ctx context.Context, courtID uint64, start time.Time) (*model.Schedule, error)
	// ListInRange returns slots with StartDateTime >= start and EndDateTime <= end.
	ListInRange(ctx context.Context, start, end time.Time) ([]model.Schedule, error)
	// ListByCourt returns a court's slots ordered by StartDateTime ascending.
	ListByCourt(ctx context.Context, courtID uint64) ([]model.Schedule, error)
}

// ReservationStore persists reservations.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	Update(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	// LockByID is GetByID plus a row lock held until the transaction ends.
	LockByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ListBySchedule(ctx context.Context, scheduleID uint64) ([]model.Reservation, error)
	ListByGuest(ctx context.Context, guestID uint64) ([]model.Reservation, error)
}

// Stores bundles the collaborators a unit of work needs.
type Stores struct {
	Guests       GuestLookup
	Courts       CourtLookup
	Schedules    ScheduleStore
	Reservations ReservationStore
}

// Transactor runs fn inside a single storage transaction.  The Stores passed
// to fn are bound to that transaction.  A non-nil error from fn rolls every
// write back; nil commits.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Stores) error) error
}

// EventPublisher receives reservation lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}
