package domain

import "time"

type Passenger struct {
	Name string `json:"name"`
	Age  *int   `json:"age,omitempty"`
}

type Booking struct {
	ID                     int64
	UserID                 int64
	Passengers             []Passenger
	FlightCode             string
	Airline                string
	Route                  string
	PricePaidCents         int64
	PassengerCount         int
	PricePerPassengerCents int64
	IsReturn               bool
	ReservationCode        string
	CreatedAt              time.Time
}
