package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers

	"github.com/iliyamo/tennis-court-reservation/internal/model"
)

// TennisCourtRepo encapsulates all database queries related to tennis
// courts.  It depends on a sql.DB connection which should be configured
// elsewhere.
type TennisCourtRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewTennisCourtRepo constructs a TennisCourtRepo with the provided DB handle.
func NewTennisCourtRepo(db *sql.DB) *TennisCourtRepo {
	return &TennisCourtRepo{db: db}
}

const courtColumns = "id, name, created_at, updated_at"

// Create inserts a new court.  On success the court's ID and timestamps are
// populated from a follow-up SELECT so callers receive a complete record.
func (r *TennisCourtRepo) Create(ctx context.Context, c *model.TennisCourt) error {
	res, err := r.db.ExecContext(ctx, "INSERT INTO tennis_courts (name) VALUES (?)", c.Name)
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
	*c = *created
	return nil
}

// GetByID fetches a court by its ID.  It returns ErrNotFound if no row is found.
func (r *TennisCourtRepo) GetByID(ctx context.Context, id uint64) (*model.TennisCourt, error) {
	var c model.TennisCourt
	err := r.db.QueryRowContext(ctx, "SELECT "+courtColumns+" FROM tennis_courts WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// ListAll returns every court ordered by name.
func (r *TennisCourtRepo) ListAll(ctx context.Context) ([]model.TennisCourt, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+courtColumns+" FROM tennis_courts ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.TennisCourt, 0)
	for rows.Next() {
		var c model.TennisCourt
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update renames a court and returns the refreshed row.  ErrNotFound is
// returned when the court does not exist.
func (r *TennisCourtRepo) Update(ctx context.Context, id uint64, name string) (*model.TennisCourt, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE tennis_courts SET name = ? WHERE id = ?", name, id); err != nil {
		return nil, translate(err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a court.  ErrNotFound is returned when it does not exist
// and ErrConflict when schedule slots still reference it.
func (r *TennisCourtRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tennis_courts WHERE id = ?", id)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
