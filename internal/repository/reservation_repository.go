package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/tennis-court-reservation/internal/model"
)

// ReservationRepo provides data access to the `reservations` table.
//
// The table carries a generated column active_schedule_id that equals
// schedule_id while the row is READY_TO_PLAY and NULL otherwise, with a
// UNIQUE index on it.  A second READY_TO_PLAY reservation for the same slot
// is therefore rejected by the database itself (ErrDuplicate) even if two
// writers pass the application-level check at the same time.
type ReservationRepo struct {
	q querier
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{q: db} }

// WithTx returns a copy of the repository that runs every statement inside tx.
func (r *ReservationRepo) WithTx(tx *sql.Tx) *ReservationRepo { return &ReservationRepo{q: tx} }

const reservationColumns = `id, guest_id, schedule_id, status, value_cents, refund_value_cents,
       previous_reservation_id, next_reservation_id, created_at, updated_at`

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res    model.Reservation
		status string
		refund sql.NullInt64
		prev   sql.NullInt64
		next   sql.NullInt64
	)
	if err := row.Scan(&res.ID, &res.GuestID, &res.ScheduleID, &status, &res.ValueCents, &refund,
		&prev, &next, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	state, err := stateFromColumns(model.ReservationStatus(status), refund, next)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", res.ID, err)
	}
	res.State = state
	res.PreviousReservationID = uint64Ptr(prev)
	return &res, nil
}

// stateFromColumns rebuilds the reservation state from its row.  Terminal
// statuses without a refund are rejected as corrupt.
func stateFromColumns(status model.ReservationStatus, refund, next sql.NullInt64) (model.ReservationState, error) {
	switch status {
	case model.StatusReadyToPlay:
		return model.ReadyToPlay{}, nil
	case model.StatusCancelled:
		if !refund.Valid {
			return nil, fmt.Errorf("status %s without refund_value_cents", status)
		}
		return model.Cancelled{RefundCents: uint32(refund.Int64)}, nil
	case model.StatusRescheduled:
		if !refund.Valid || !next.Valid {
			return nil, fmt.Errorf("status %s without refund_value_cents or next_reservation_id", status)
		}
		return model.Rescheduled{RefundCents: uint32(refund.Int64), NextReservationID: uint64(next.Int64)}, nil
	}
	return nil, fmt.Errorf("unknown status %q", status)
}

// stateColumns flattens a state into (status, refund_value_cents, next_reservation_id).
func stateColumns(state model.ReservationState) (string, any, any) {
	switch s := state.(type) {
	case model.Cancelled:
		return string(s.Status()), s.RefundCents, nil
	case model.Rescheduled:
		return string(s.Status()), s.RefundCents, s.NextReservationID
	}
	return string(model.StatusReadyToPlay), nil, nil
}

// Create inserts res and populates its ID and timestamps.  A second
// READY_TO_PLAY reservation on the same slot yields ErrDuplicate.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations
               (guest_id, schedule_id, status, value_cents, refund_value_cents, previous_reservation_id, next_reservation_id)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	status, refund, next := stateColumns(res.State)
	result, err := r.q.ExecContext(ctx, q, res.GuestID, res.ScheduleID, status, res.ValueCents, refund,
		nullableUint64(res.PreviousReservationID), next)
	if err != nil {
		return translate(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps and defaults
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	created.Schedule, created.Guest = res.Schedule, res.Guest
	*res = *created
	return nil
}

// Update writes the mutable columns of res: state, value and the
// rescheduling link.  It returns ErrNotFound when the row is missing.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	const q = `UPDATE reservations
               SET status = ?, value_cents = ?, refund_value_cents = ?, next_reservation_id = ?
               WHERE id = ?`
	status, refund, next := stateColumns(res.State)
	result, err := r.q.ExecContext(ctx, q, status, res.ValueCents, refund, next, res.ID)
	if err != nil {
		return translate(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	// RowsAffected is 0 for an unchanged row too; only report missing rows.
	if n == 0 {
		if _, err := r.GetByID(ctx, res.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetByID returns the reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return scanReservation(r.q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
}

// LockByID reads the reservation with SELECT ... FOR UPDATE so a concurrent
// cancel or reschedule of the same row waits for this transaction.
func (r *ReservationRepo) LockByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return scanReservation(r.q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
}

// ListBySchedule returns every reservation, in any status, made on a slot.
func (r *ReservationRepo) ListBySchedule(ctx context.Context, scheduleID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE schedule_id = ? ORDER BY id`
	return r.list(ctx, q, scheduleID)
}

// ListByGuest returns a guest's reservations, newest first.
func (r *ReservationRepo) ListByGuest(ctx context.Context, guestID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE guest_id = ? ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q, guestID)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
