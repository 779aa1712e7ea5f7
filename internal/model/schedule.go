package model

import "time"

// SlotDuration is the fixed length of every schedule slot.
const SlotDuration = time.Hour

// Schedule is a one-hour bookable window on a tennis court.  Slots are
// created once and never mutated; (TennisCourtID, StartDateTime) is unique.
// This struct corresponds to a row in the `schedules` table.
//
// Fields:
//  ID            – primary key identifier.
//  TennisCourtID – court the slot belongs to.
//  StartDateTime – slot start (UTC).
//  EndDateTime   – StartDateTime + SlotDuration.
//  CreatedAt     – creation timestamp.
type Schedule struct {
	ID            uint64    `json:"id"`              // schedules.id
	TennisCourtID uint64    `json:"tennis_court_id"` // schedules.tennis_court_id
	StartDateTime time.Time `json:"start_date_time"` // schedules.start_date_time
	EndDateTime   time.Time `json:"end_date_time"`   // schedules.end_date_time
	CreatedAt     time.Time `json:"created_at"`      // schedules.created_at
}
