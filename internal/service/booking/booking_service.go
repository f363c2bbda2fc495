package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/saburov/airfare/internal/domain"
	"github.com/saburov/airfare/internal/kafka"
	"github.com/saburov/airfare/internal/repository"
)

const (
	minPassengers   = 1
	maxPassengers   = 9
	codeStemLength  = 6
	codeGenAttempts = 5
)

type BookingUseCase interface {
	Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error)
	ListByUser(ctx context.Context, externalID string) ([]domain.Booking, error)
	GetByReservationCode(ctx context.Context, code string) (*domain.Booking, error)
}

type Pricing interface {
	RecordAttempt(ctx context.Context, userID, flightCode string, priceCents int64) (domain.Attempt, error)
	Evaluate(ctx context.Context, userID, flightCode string) (int64, error)
}

type Wallet interface {
	Resolve(ctx context.Context, externalID string) (*domain.User, error)
	Debit(ctx context.Context, userID, amountCents int64) (int64, error)
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings     repository.BookingRepository
	flights      repository.FlightRepository
	wallet       Wallet
	pricing      Pricing
	tx           TxRunner
	producer     Producer
	ticketsTopic string
}

type PurchaseInput struct {
	UserID           string             `json:"user_id"`
	FlightCode       string             `json:"flight_code"`
	ReturnFlightCode string             `json:"return_flight_code"`
	PassengerCount   int                `json:"passenger_count"`
	Passengers       []domain.Passenger `json:"passengers"`
}

type PurchaseResult struct {
	Outbound              domain.Booking
	Return                *domain.Booking
	TotalPriceCents       int64
	RemainingBalanceCents int64
	Warnings              []string
}

type BookingServiceOption func(*BookingService)

// WithTicketEvents publishes a ticket-render request per booked leg.
func WithTicketEvents(producer Producer, topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.ticketsTopic = topic
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	wallet Wallet,
	pricing Pricing,
	tx TxRunner,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings: bookings,
		flights:  flights,
		wallet:   wallet,
		pricing:  pricing,
		tx:       tx,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Purchase books one or two legs against a single wallet debit. The debit and
// all booking inserts commit together; everything before the debit rejects
// cleanly, everything after it (ticket events) is best effort.
func (s *BookingService) Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	outbound, err := s.flights.GetByCode(ctx, input.FlightCode)
	if err != nil {
		return nil, err
	}

	var returnFlight *domain.Flight
	if input.ReturnFlightCode != "" {
		returnFlight, err = s.flights.GetByCode(ctx, input.ReturnFlightCode)
		if err != nil {
			return nil, err
		}
	}

	user, err := s.wallet.Resolve(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	var warnings []string

	// Attempts always log the pre-evaluation price. Evaluation itself is an
	// enhancement: on failure the leg keeps its last known price.
	outboundPrice, warn, err := s.priceLeg(ctx, user.ExternalID, outbound)
	if err != nil {
		return nil, err
	}
	if warn != "" {
		warnings = append(warnings, warn)
	}

	var returnPrice int64
	if returnFlight != nil {
		returnPrice, warn, err = s.priceLeg(ctx, user.ExternalID, returnFlight)
		if err != nil {
			return nil, err
		}
		if warn != "" {
			warnings = append(warnings, warn)
		}
	}

	passengerCount := clampPassengerCount(input.PassengerCount)
	passengers := normalizePassengers(input.Passengers, passengerCount, user.Name)
	totalPrice := (outboundPrice + returnPrice) * int64(passengerCount)

	result := &PurchaseResult{TotalPriceCents: totalPrice, Warnings: warnings}

	// The reservation-code stem is regenerated and the whole transaction
	// retried on a code collision; any other failure rolls back the debit.
	var committed bool
	for attempt := 0; attempt < codeGenAttempts && !committed; attempt++ {
		stem := generateCodeStem()

		err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
			remaining, err := s.wallet.Debit(txCtx, user.ID, totalPrice)
			if err != nil {
				return err
			}
			result.RemainingBalanceCents = remaining

			outboundBooking := buildBooking(user.ID, outbound, passengers, passengerCount, outboundPrice, stem+"O", false)
			if err := s.bookings.Create(txCtx, &outboundBooking); err != nil {
				return err
			}
			result.Outbound = outboundBooking

			if returnFlight != nil {
				returnBooking := buildBooking(user.ID, returnFlight, passengers, passengerCount, returnPrice, stem+"R", true)
				if err := s.bookings.Create(txCtx, &returnBooking); err != nil {
					return err
				}
				result.Return = &returnBooking
			}
			return nil
		})
		if err == nil {
			committed = true
		} else if errors.Is(err, domain.ErrInsufficientFunds) {
			return nil, &domain.InsufficientFundsError{
				AvailableCents: user.WalletBalanceCents,
				RequiredCents:  totalPrice,
			}
		} else if err != domain.ErrReservationCodeTaken {
			return nil, err
		}
	}
	if !committed {
		return nil, fmt.Errorf("could not allocate a reservation code: %w", domain.ErrReservationCodeTaken)
	}

	s.publishTicket(ctx, result.Outbound, result)
	if result.Return != nil {
		s.publishTicket(ctx, *result.Return, result)
	}

	return result, nil
}

func (s *BookingService) ListByUser(ctx context.Context, externalID string) ([]domain.Booking, error) {
	user, err := s.wallet.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.bookings.ListByUser(ctx, user.ID)
}

func (s *BookingService) GetByReservationCode(ctx context.Context, code string) (*domain.Booking, error) {
	return s.bookings.GetByReservationCode(ctx, code)
}

func (s *BookingService) priceLeg(ctx context.Context, userID string, flight *domain.Flight) (int64, string, error) {
	if _, err := s.pricing.RecordAttempt(ctx, userID, flight.Code, flight.CurrentPriceCents); err != nil {
		return 0, "", err
	}

	price, err := s.pricing.Evaluate(ctx, userID, flight.Code)
	if err != nil {
		log.Printf("pricing evaluation failed for flight %s (non-fatal): %v", flight.Code, err)
		return flight.CurrentPriceCents, fmt.Sprintf("pricing unavailable for flight %s, last known price used", flight.Code), nil
	}
	return price, "", nil
}

func (s *BookingService) publishTicket(ctx context.Context, booking domain.Booking, result *PurchaseResult) {
	if s.producer == nil || s.ticketsTopic == "" {
		return
	}

	event := kafka.TicketEvent{
		ReservationCode: booking.ReservationCode,
		FlightCode:      booking.FlightCode,
		Airline:         booking.Airline,
		Route:           booking.Route,
		IsReturn:        booking.IsReturn,
		Passengers:      booking.Passengers,
		PricePaidCents:  booking.PricePaidCents,
		BookedAt:        booking.CreatedAt,
	}
	if err := s.producer.Publish(ctx, s.ticketsTopic, booking.ReservationCode, event); err != nil {
		log.Printf("failed to publish ticket event for %s: %v", booking.ReservationCode, err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("ticket for %s is not available yet", booking.ReservationCode))
	}
}

func buildBooking(userID int64, flight *domain.Flight, passengers []domain.Passenger, passengerCount int, pricePerPassenger int64, code string, isReturn bool) domain.Booking {
	route := flight.Route()
	if isReturn {
		route = flight.ReverseRoute()
	}
	return domain.Booking{
		UserID:                 userID,
		Passengers:             passengers,
		FlightCode:             flight.Code,
		Airline:                flight.Airline,
		Route:                  route,
		PricePaidCents:         pricePerPassenger * int64(passengerCount),
		PassengerCount:         passengerCount,
		PricePerPassengerCents: pricePerPassenger,
		IsReturn:               isReturn,
		ReservationCode:        code,
		CreatedAt:              time.Now().UTC(),
	}
}

func clampPassengerCount(n int) int {
	if n < minPassengers {
		return minPassengers
	}
	if n > maxPassengers {
		return maxPassengers
	}
	return n
}

// normalizePassengers truncates or pads the detail list to count entries.
func normalizePassengers(details []domain.Passenger, count int, fallbackName string) []domain.Passenger {
	passengers := make([]domain.Passenger, 0, count)
	for i := 0; i < count; i++ {
		if i < len(details) && details[i].Name != "" {
			passengers = append(passengers, details[i])
			continue
		}
		name := fallbackName
		if count > 1 {
			name = fmt.Sprintf("%s #%d", fallbackName, i+1)
		}
		passengers = append(passengers, domain.Passenger{Name: name})
	}
	return passengers
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateCodeStem() string {
	stem := make([]byte, codeStemLength)
	for i := range stem {
		stem[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(stem)
}

var _ BookingUseCase = (*BookingService)(nil)
