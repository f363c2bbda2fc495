package domain

import "time"

type Flight struct {
	ID                int64
	Code              string
	Airline           string
	DepartureCity     string
	ArrivalCity       string
	DepartureDate     time.Time
	DepartureTime     string
	ArrivalTime       string
	BasePriceCents    int64
	CurrentPriceCents int64
	LastPriceUpdate   time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Route is the display label "DepartureCity-ArrivalCity".
func (f Flight) Route() string {
	return f.DepartureCity + "-" + f.ArrivalCity
}

// ReverseRoute labels a return leg, destination first.
func (f Flight) ReverseRoute() string {
	return f.ArrivalCity + "-" + f.DepartureCity
}
