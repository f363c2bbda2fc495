package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFlightNotFound       = errors.New("flight not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrReservationCodeTaken = errors.New("reservation code already taken")
)

// InsufficientFundsError carries the balance shortfall so callers can report
// the available and required amounts. It unwraps to ErrInsufficientFunds.
type InsufficientFundsError struct {
	AvailableCents int64
	RequiredCents  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %d, need %d", e.AvailableCents, e.RequiredCents)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}
