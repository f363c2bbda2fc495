package domain

import "time"

type User struct {
	ID                 int64
	ExternalID         string
	Name               string
	Email              string
	WalletBalanceCents int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
