package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/tennis-court-reservation/internal/model"
)

// ScheduleRepo persists schedule slots in the `schedules` table.  All
// timestamps are stored and compared in UTC.  UNIQUE(tennis_court_id,
// start_date_time) backs the one-slot-per-start rule.
type ScheduleRepo struct {
	q querier
}

// NewScheduleRepo returns a ScheduleRepo bound to db.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{q: db} }

// WithTx returns a copy of the repository that runs every statement inside tx.
func (r *ScheduleRepo) WithTx(tx *sql.Tx) *ScheduleRepo { return &ScheduleRepo{q: tx} }

const scheduleColumns = `id, tennis_court_id, start_date_time, end_date_time, created_at`

func scanSchedule(row rowScanner) (*model.Schedule, error) {
	var s model.Schedule
	if err := row.Scan(&s.ID, &s.TennisCourtID, &s.StartDateTime, &s.EndDateTime, &s.CreatedAt); err != nil {
		return nil, translate(err)
	}
	s.StartDateTime = s.StartDateTime.UTC()
	s.EndDateTime = s.EndDateTime.UTC()
	return &s, nil
}

// Create inserts s and fills its ID and CreatedAt.  A slot that already
// exists for the court and start time yields ErrDuplicate.
func (r *ScheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	const q = `INSERT INTO schedules (tennis_court_id, start_date_time, end_date_time) VALUES (?, ?, ?)`
	res, err := r.q.ExecContext(ctx, q, s.TennisCourtID, s.StartDateTime.UTC(), s.EndDateTime.UTC())
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

// GetByID returns the slot or ErrNotFound.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	return scanSchedule(r.q.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id))
}

// LockByID reads the slot with SELECT ... FOR UPDATE.  Only meaningful on a
// transactional repository; the lock is released at commit or rollback.
func (r *ScheduleRepo) LockByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	return scanSchedule(r.q.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ? FOR UPDATE`, id))
}

// FindByCourtAndStart returns the slot on courtID starting at start, or ErrNotFound.
func (r *ScheduleRepo) FindByCourtAndStart(ctx context.Context, courtID uint64, start time.Time) (*model.Schedule, error) {
	const q = `SELECT ` + scheduleColumns + ` FROM schedules WHERE tennis_court_id = ? AND start_date_time = ? LIMIT 1`
	return scanSchedule(r.q.QueryRowContext(ctx, q, courtID, start.UTC()))
}

// ListInRange returns slots with start_date_time >= start and
// end_date_time <= end, both bounds inclusive.
func (r *ScheduleRepo) ListInRange(ctx context.Context, start, end time.Time) ([]model.Schedule, error) {
	const q = `SELECT ` + scheduleColumns + ` FROM schedules
               WHERE start_date_time >= ? AND end_date_time <= ?
               ORDER BY start_date_time ASC, tennis_court_id ASC`
	return r.list(ctx, q, start.UTC(), end.UTC())
}

// ListByCourt returns every slot of a court ordered by start time ascending.
func (r *ScheduleRepo) ListByCourt(ctx context.Context, courtID uint64) ([]model.Schedule, error) {
	const q = `SELECT ` + scheduleColumns + ` FROM schedules
               WHERE tennis_court_id = ?
               ORDER BY start_date_time ASC`
	return r.list(ctx, q, courtID)
}

func (r *ScheduleRepo) list(ctx context.Context, q string, args ...any) ([]model.Schedule, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
