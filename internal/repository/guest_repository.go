package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/utils"
)

// GuestRepo persists guests, who are also the login accounts.
type GuestRepo struct{ DB *sql.DB }

func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{DB: db} }

const guestColumns = "id,name,email,password_hash,role,created_at,updated_at"

func scanGuest(row rowScanner) (*model.Guest, error) {
	var g model.Guest
	if err := row.Scan(&g.ID, &g.Name, &g.Email, &g.PasswordHash, &g.Role, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

// Create hashes the password, inserts the guest and returns its ID.
func (r *GuestRepo) Create(ctx context.Context, name, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO guests (name, email, password_hash, role) VALUES (?,?,?,?)",
		strings.TrimSpace(name), email, hash, role)
	if err != nil {
		if errors.Is(translate(err), ErrDuplicate) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a guest by normalized email.
func (r *GuestRepo) GetByEmail(ctx context.Context, email string) (*model.Guest, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanGuest(r.DB.QueryRowContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE email=? LIMIT 1", email))
}

// GetByID fetches a guest by id.
func (r *GuestRepo) GetByID(ctx context.Context, id uint64) (*model.Guest, error) {
	return scanGuest(r.DB.QueryRowContext(ctx,
		"SELECT "+guestColumns+" FROM guests WHERE id=? LIMIT 1", id))
}

// ListAll returns every guest ordered by id.
func (r *GuestRepo) ListAll(ctx context.Context) ([]model.Guest, error) {
	return r.list(ctx, "SELECT "+guestColumns+" FROM guests ORDER BY id")
}

// ListByName returns the guests whose name matches exactly (case-insensitive
// under the default collation).
func (r *GuestRepo) ListByName(ctx context.Context, name string) ([]model.Guest, error) {
	return r.list(ctx, "SELECT "+guestColumns+" FROM guests WHERE name=? ORDER BY id", strings.TrimSpace(name))
}

// UpdateName changes a guest's display name.
func (r *GuestRepo) UpdateName(ctx context.Context, id uint64, name string) (*model.Guest, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if _, err := r.DB.ExecContext(ctx, "UPDATE guests SET name=? WHERE id=?", strings.TrimSpace(name), id); err != nil {
		return nil, translate(err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a guest.  ErrConflict is returned while reservations still
// reference the guest.
func (r *GuestRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM guests WHERE id=?", id)
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

func (r *GuestRepo) list(ctx context.Context, q string, args ...any) ([]model.Guest, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Guest, 0)
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *g)
	}
	return result, rows.Err()
}
