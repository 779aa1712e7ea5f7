package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Reasons a stored refresh token is refused.  Both match ErrNotFound so
// callers that only care about "no usable token" need one check.
var (
	ErrTokenRevoked = fmt.Errorf("%w: refresh token revoked", ErrNotFound)
	ErrTokenExpired = fmt.Errorf("%w: refresh token expired", ErrNotFound)
)

// refreshRow is the part of a refresh_tokens row that decides whether the
// token may still be used.
type refreshRow struct {
	guestID   uint64
	expiresAt time.Time
	revokedAt sql.NullTime
}

// usable reports why the token cannot be used at now, or nil.  A token is
// still valid at the instant it expires.
func (r refreshRow) usable(now time.Time) error {
	switch {
	case r.revokedAt.Valid:
		return ErrTokenRevoked
	case now.After(r.expiresAt):
		return ErrTokenExpired
	}
	return nil
}

// TokenRepo stores refresh tokens by their SHA-256 hash.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh records a newly issued token.
func (r *TokenRepo) StoreRefresh(ctx context.Context, guestID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (guest_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		guestID, tokenHash, exp.UTC())
	return translate(err)
}

// ValidateRefresh returns the guest holding tokenHash.  Unknown tokens give
// ErrNotFound; revoked and expired ones give ErrTokenRevoked and
// ErrTokenExpired.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var row refreshRow
	err := r.DB.QueryRowContext(ctx,
		`SELECT guest_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash = ?`,
		tokenHash).Scan(&row.guestID, &row.expiresAt, &row.revokedAt)
	if err != nil {
		return 0, translate(err)
	}
	if err := row.usable(now.UTC()); err != nil {
		return 0, err
	}
	return row.guestID, nil
}

// RevokeByHash revokes one token.  It returns ErrTokenRevoked when the token
// was already revoked, so of two concurrent rotations only one wins.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE token_hash = ? AND revoked_at IS NULL`,
		tokenHash)
	if err != nil {
		return translate(err)
	}
	return revokedOne(res)
}

// RevokeAllForGuest revokes every active token of a guest.
func (r *TokenRepo) RevokeAllForGuest(ctx context.Context, guestID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE guest_id = ? AND revoked_at IS NULL`,
		guestID)
	return translate(err)
}

func revokedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenRevoked
	}
	return nil
}
