package model

import "time"

// TennisCourt is a bookable court.  Slots are allocated against it.
// This struct corresponds to a row in the `tennis_courts` table.
type TennisCourt struct {
	ID        uint64    `json:"id"`         // tennis_courts.id
	Name      string    `json:"name"`       // tennis_courts.name
	CreatedAt time.Time `json:"created_at"` // tennis_courts.created_at
	UpdatedAt time.Time `json:"updated_at"` // tennis_courts.updated_at
}
