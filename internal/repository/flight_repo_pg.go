package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saburov/airfare/internal/domain"
)

// FlightFilter narrows List; empty fields match everything.
type FlightFilter struct {
	DepartureCity string
	ArrivalCity   string
	Airline       string
}

type FlightRepository interface {
	List(ctx context.Context, filter FlightFilter) ([]domain.Flight, error)
	GetByCode(ctx context.Context, code string) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	ResetPriceIfStale(ctx context.Context, code string, cutoff, now time.Time) (bool, error)
	IncreasePriceIfAtBase(ctx context.Context, code string, multiplier float64, now time.Time) (bool, error)
}

type PGFlightRepository struct {
	pool *pgxpool.Pool
}

func NewFlightRepository(pool *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{pool: pool}
}

const flightColumns = `id, code, airline, departure_city, arrival_city, departure_date, departure_time, arrival_time, base_price_cents, current_price_cents, last_price_update, created_at, updated_at`

func (r *PGFlightRepository) List(ctx context.Context, filter FlightFilter) ([]domain.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights WHERE ($1 = '' OR departure_city = $1) AND ($2 = '' OR arrival_city = $2) AND ($3 = '' OR airline = $3) ORDER BY departure_date, departure_time`
	rows, err := db(ctx, r.pool).Query(ctx, query, filter.DepartureCity, filter.ArrivalCity, filter.Airline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByCode(ctx context.Context, code string) (*domain.Flight, error) {
	row := db(ctx, r.pool).QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE code=$1`, code)
	f, err := scanFlight(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFlightNotFound
		}
		return nil, fmt.Errorf("get flight: %w", err)
	}
	return &f, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	if flight.CurrentPriceCents == 0 {
		flight.CurrentPriceCents = flight.BasePriceCents
	}
	return db(ctx, r.pool).QueryRow(ctx, `INSERT INTO flights (code, airline, departure_city, arrival_city, departure_date, departure_time, arrival_time, base_price_cents, current_price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, last_price_update, created_at, updated_at`,
		flight.Code, flight.Airline, flight.DepartureCity, flight.ArrivalCity, flight.DepartureDate, flight.DepartureTime, flight.ArrivalTime, flight.BasePriceCents, flight.CurrentPriceCents).
		Scan(&flight.ID, &flight.LastPriceUpdate, &flight.CreatedAt, &flight.UpdatedAt)
}

// ResetPriceIfStale drops an elevated price back to base, but only when the
// last price mutation is at or before cutoff. The guard keeps the write a
// compare-and-swap: a concurrent reset or increase makes this a no-op.
func (r *PGFlightRepository) ResetPriceIfStale(ctx context.Context, code string, cutoff, now time.Time) (bool, error) {
	res, err := db(ctx, r.pool).Exec(ctx, `UPDATE flights
		SET current_price_cents = base_price_cents, last_price_update = $2, updated_at = $2
		WHERE code=$1 AND current_price_cents <> base_price_cents AND last_price_update <= $3`,
		code, now, cutoff)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// IncreasePriceIfAtBase applies the multiplier to the base price, rounded to
// whole cents, only when the price is not already elevated. At most one of
// any number of racing callers wins the write.
func (r *PGFlightRepository) IncreasePriceIfAtBase(ctx context.Context, code string, multiplier float64, now time.Time) (bool, error) {
	res, err := db(ctx, r.pool).Exec(ctx, `UPDATE flights
		SET current_price_cents = ROUND(base_price_cents * $2::numeric)::bigint, last_price_update = $3, updated_at = $3
		WHERE code=$1 AND current_price_cents = base_price_cents`,
		code, multiplier, now)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func scanFlight(row pgx.Row) (domain.Flight, error) {
	var f domain.Flight
	err := row.Scan(&f.ID, &f.Code, &f.Airline, &f.DepartureCity, &f.ArrivalCity, &f.DepartureDate, &f.DepartureTime, &f.ArrivalTime, &f.BasePriceCents, &f.CurrentPriceCents, &f.LastPriceUpdate, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

var _ FlightRepository = (*PGFlightRepository)(nil)
