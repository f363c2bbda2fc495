package domain

import "time"

// Attempt is one recorded pricing evaluation for a (user, flight) pair.
// Attempts are append-only and expire after the ledger retention window.
type Attempt struct {
	ID         string
	UserID     string
	FlightCode string
	PriceCents int64
	At         time.Time
}
