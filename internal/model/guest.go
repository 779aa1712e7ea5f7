package model

import "time"

// Guest is a player who can hold reservations.  Guests double as the
// application's login accounts, so the row also carries credentials and a
// role.  This struct corresponds to a row in the `guests` table.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name; searchable.
//  Email        – unique login email.
//  PasswordHash – bcrypt hash of the password.
//  Role         – GUEST or ADMIN.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Guest struct {
	ID           uint64    `json:"id"`         // guests.id
	Name         string    `json:"name"`       // guests.name
	Email        string    `json:"email"`      // guests.email
	PasswordHash string    `json:"-"`          // guests.password_hash
	Role         string    `json:"role"`       // guests.role
	CreatedAt    time.Time `json:"created_at"` // guests.created_at
	UpdatedAt    time.Time `json:"updated_at"` // guests.updated_at
}

// Roles stored in guests.role and carried in the access token.
const (
	RoleGuest = "GUEST"
	RoleAdmin = "ADMIN"
)
