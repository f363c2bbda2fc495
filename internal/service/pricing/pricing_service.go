package pricing

import (
	"context"
	"time"

	"github.com/saburov/airfare/internal/clock"
	"github.com/saburov/airfare/internal/domain"
	"github.com/saburov/airfare/internal/repository"
)

type PricingUseCase interface {
	RecordAttempt(ctx context.Context, userID, flightCode string, priceCents int64) (domain.Attempt, error)
	Evaluate(ctx context.Context, userID, flightCode string) (int64, error)
}

type AttemptLedger interface {
	Record(ctx context.Context, userID, flightCode string, priceCents int64) (domain.Attempt, error)
	CountRecent(ctx context.Context, userID, flightCode string, window time.Duration) (int, error)
}

type Cache interface {
	InvalidateFlights(ctx context.Context) error
}

type PricingService struct {
	flights        repository.FlightRepository
	ledger         AttemptLedger
	cache          Cache
	clock          clock.Clock
	increaseWindow time.Duration
	resetWindow    time.Duration
	threshold      int
	increasePct    float64
}

type PricingServiceOption func(*PricingService)

// WithCache invalidates the flights list cache after a price mutation.
func WithCache(cache Cache) PricingServiceOption {
	return func(s *PricingService) {
		s.cache = cache
	}
}

func WithWindows(increase, reset time.Duration) PricingServiceOption {
	return func(s *PricingService) {
		s.increaseWindow = increase
		s.resetWindow = reset
	}
}

func WithThreshold(threshold int) PricingServiceOption {
	return func(s *PricingService) {
		s.threshold = threshold
	}
}

func WithIncreasePercentage(pct float64) PricingServiceOption {
	return func(s *PricingService) {
		s.increasePct = pct
	}
}

func NewPricingService(flights repository.FlightRepository, ledger AttemptLedger, clk clock.Clock, opts ...PricingServiceOption) *PricingService {
	service := &PricingService{
		flights:        flights,
		ledger:         ledger,
		clock:          clk,
		increaseWindow: 5 * time.Minute,
		resetWindow:    10 * time.Minute,
		threshold:      3,
		increasePct:    0.10,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// RecordAttempt logs one pricing evaluation for the pair. priceCents must be
// the flight's price before Evaluate runs.
func (s *PricingService) RecordAttempt(ctx context.Context, userID, flightCode string, priceCents int64) (domain.Attempt, error) {
	return s.ledger.Record(ctx, userID, flightCode, priceCents)
}

// Evaluate applies the pricing policy and returns the authoritative current
// price. A stale elevated price is reset before the increase check, so a
// flight that is both stale and heavily attempted never skips its reset.
func (s *PricingService) Evaluate(ctx context.Context, userID, flightCode string) (int64, error) {
	flight, err := s.flights.GetByCode(ctx, flightCode)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	mutated := false

	if flight.CurrentPriceCents != flight.BasePriceCents && now.Sub(flight.LastPriceUpdate) >= s.resetWindow {
		reset, err := s.flights.ResetPriceIfStale(ctx, flightCode, now.Add(-s.resetWindow), now)
		if err != nil {
			return 0, err
		}
		if reset {
			flight.CurrentPriceCents = flight.BasePriceCents
			flight.LastPriceUpdate = now
			mutated = true
		}
	}

	count, err := s.ledger.CountRecent(ctx, userID, flightCode, s.increaseWindow)
	if err != nil {
		return 0, err
	}
	if count >= s.threshold && flight.CurrentPriceCents == flight.BasePriceCents {
		// Guarded write: only one of any racing evaluations elevates the
		// price, and an already-elevated price is never compounded.
		increased, err := s.flights.IncreasePriceIfAtBase(ctx, flightCode, 1+s.increasePct, now)
		if err != nil {
			return 0, err
		}
		if increased {
			mutated = true
		}
		updated, err := s.flights.GetByCode(ctx, flightCode)
		if err != nil {
			return 0, err
		}
		flight = updated
	}

	if mutated && s.cache != nil {
		_ = s.cache.InvalidateFlights(ctx)
	}
	return flight.CurrentPriceCents, nil
}

var _ PricingUseCase = (*PricingService)(nil)
