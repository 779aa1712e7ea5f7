package service

import "time"

// ReservationFeeCents is charged for every booking (10.00).
const ReservationFeeCents uint32 = 1000

// ComputeRefund returns the part of valueCents given back when a reservation
// on a slot starting at start is cancelled or rescheduled at now.
//
// Hours to start are counted in whole hours, truncated toward zero:
//
//	h >= 24       100%
//	12 <= h < 24   75%
//	2 <= h < 12    50%
//	0 <= h < 2     25%
//	h < 0           0
func ComputeRefund(now, start time.Time, valueCents uint32) uint32 {
	hours := int64(start.Sub(now) / time.Hour)

	var percent uint64
	switch {
	case hours >= 24:
		return valueCents
	case hours >= 12:
		percent = 75
	case hours >= 2:
		percent = 50
	case hours >= 0:
		percent = 25
	default:
		return 0
	}
	return uint32(uint64(valueCents) * percent / 100)
}
