// Package validity derives the live status of a purchased item from its expiry date.
package validity

import (
	"math"
	"time"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusExpiringSoon Status = "expiring_soon"
	StatusExpired      Status = "expired"
)

const DefaultExpiringSoonWithin = 30 * 24 * time.Hour

const day = 24 * time.Hour

// Tracker classifies expiry dates. Nothing is stored; status is computed on read.
type Tracker struct {
	ExpiringSoonWithin time.Duration
}

func NewTracker(expiringSoonWithin time.Duration) Tracker {
	if expiringSoonWithin <= 0 {
		expiringSoonWithin = DefaultExpiringSoonWithin
	}
	return Tracker{ExpiringSoonWithin: expiringSoonWithin}
}

// Evaluate returns the status of an item expiring at expiry together with the
// number of days left, rounded up. Expired items report zero days left.
func (t Tracker) Evaluate(expiry, now time.Time) (Status, int) {
	if now.After(expiry) {
		return StatusExpired, 0
	}

	daysLeft := int(math.Ceil(float64(expiry.Sub(now)) / float64(day)))

	window := t.ExpiringSoonWithin
	if window <= 0 {
		window = DefaultExpiringSoonWithin
	}
	soonDays := int(math.Ceil(float64(window) / float64(day)))

	if daysLeft <= soonDays {
		return StatusExpiringSoon, daysLeft
	}
	return StatusActive, daysLeft
}
