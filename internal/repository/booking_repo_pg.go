package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saburov/airfare/internal/domain"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
	GetByReservationCode(ctx context.Context, code string) (*domain.Booking, error)
}

type PGBookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{pool: pool}
}

const bookingColumns = `id, user_id, passengers, flight_code, airline, route, price_paid_cents, passenger_count, price_per_passenger_cents, is_return, reservation_code, created_at`

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	passengers, err := json.Marshal(booking.Passengers)
	if err != nil {
		return fmt.Errorf("marshal passengers: %w", err)
	}

	err = db(ctx, r.pool).QueryRow(ctx, `INSERT INTO bookings (user_id, passengers, flight_code, airline, route, price_paid_cents, passenger_count, price_per_passenger_cents, is_return, reservation_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		booking.UserID, passengers, booking.FlightCode, booking.Airline, booking.Route,
		booking.PricePaidCents, booking.PassengerCount, booking.PricePerPassengerCents,
		booking.IsReturn, booking.ReservationCode).
		Scan(&booking.ID, &booking.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrReservationCodeTaken
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	rows, err := db(ctx, r.pool).Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) GetByReservationCode(ctx context.Context, code string) (*domain.Booking, error) {
	row := db(ctx, r.pool).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE reservation_code=$1`, code)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b          domain.Booking
		passengers []byte
	)
	err := row.Scan(&b.ID, &b.UserID, &passengers, &b.FlightCode, &b.Airline, &b.Route,
		&b.PricePaidCents, &b.PassengerCount, &b.PricePerPassengerCents, &b.IsReturn,
		&b.ReservationCode, &b.CreatedAt)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := json.Unmarshal(passengers, &b.Passengers); err != nil {
		return domain.Booking{}, fmt.Errorf("unmarshal passengers: %w", err)
	}
	return b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
