package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/tennis-court-reservation/internal/repository"
	"github.com/iliyamo/tennis-court-reservation/internal/service"
)

// Transactor runs reservation units of work in a MySQL transaction.  Slot and
// reservation repositories are rebound to the transaction so their FOR UPDATE
// locks hold until commit; guest and court lookups are read-only and stay on
// the pool.
type Transactor struct {
	db        *sql.DB
	guests    *repository.GuestRepo
	courts    *repository.TennisCourtRepo
	schedules *repository.ScheduleRepo
	reserv    *repository.ReservationRepo
}

// NewTransactor builds a Transactor and the repositories it hands out.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{
		db:        db,
		guests:    repository.NewGuestRepo(db),
		courts:    repository.NewTennisCourtRepo(db),
		schedules: repository.NewScheduleRepo(db),
		reserv:    repository.NewReservationRepo(db),
	}
}

// Stores returns the non-transactional view used for plain reads.
func (t *Transactor) Stores() service.Stores {
	return service.Stores{
		Guests:       t.guests,
		Courts:       t.courts,
		Schedules:    t.schedules,
		Reservations: t.reserv,
	}
}

// WithinTx begins a transaction, runs fn and commits when fn returns nil.
// Any error, or a panic inside fn, rolls the transaction back.
func (t *Transactor) WithinTx(ctx context.Context, fn func(service.Stores) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = fn(service.Stores{
		Guests:       t.guests,
		Courts:       t.courts,
		Schedules:    t.schedules.WithTx(tx),
		Reservations: t.reserv.WithTx(tx),
	})
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
