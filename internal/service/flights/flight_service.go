package flights

import (
	"context"

	"github.com/saburov/airfare/internal/domain"
	"github.com/saburov/airfare/internal/repository"
)

type FlightUseCase interface {
	List(ctx context.Context, filter repository.FlightFilter) ([]domain.Flight, error)
	GetByCode(ctx context.Context, code string) (*domain.Flight, error)
}

type Cache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
}

type FlightService struct {
	repo  repository.FlightRepository
	cache Cache
}

func NewFlightService(repo repository.FlightRepository, cache Cache) *FlightService {
	return &FlightService{repo: repo, cache: cache}
}

// List serves the unfiltered catalog from cache when possible; filtered
// queries always hit the repository.
func (s *FlightService) List(ctx context.Context, filter repository.FlightFilter) ([]domain.Flight, error) {
	unfiltered := filter == repository.FlightFilter{}
	if unfiltered && s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if unfiltered && s.cache != nil {
		_ = s.cache.SetFlights(ctx, flights)
	}
	return flights, nil
}

func (s *FlightService) GetByCode(ctx context.Context, code string) (*domain.Flight, error) {
	return s.repo.GetByCode(ctx, code)
}

var _ FlightUseCase = (*FlightService)(nil)
