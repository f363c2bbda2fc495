package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saburov/airfare/internal/domain"
	"github.com/saburov/airfare/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByReservationCode(ctx context.Context, code string) (*domain.Booking, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context, filter repository.FlightFilter) ([]domain.Flight, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByCode(ctx context.Context, code string) (*domain.Flight, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	args := m.Called(ctx, flight)
	return args.Error(0)
}

func (m *MockFlightRepository) ResetPriceIfStale(ctx context.Context, code string, cutoff, now time.Time) (bool, error) {
	args := m.Called(ctx, code, cutoff, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockFlightRepository) IncreasePriceIfAtBase(ctx context.Context, code string, multiplier float64, now time.Time) (bool, error) {
	args := m.Called(ctx, code, multiplier, now)
	return args.Bool(0), args.Error(1)
}

type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Resolve(ctx context.Context, externalID string) (*domain.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockWallet) Debit(ctx context.Context, userID, amountCents int64) (int64, error) {
	args := m.Called(ctx, userID, amountCents)
	return args.Get(0).(int64), args.Error(1)
}

type MockPricing struct {
	mock.Mock
}

func (m *MockPricing) RecordAttempt(ctx context.Context, userID, flightCode string, priceCents int64) (domain.Attempt, error) {
	args := m.Called(ctx, userID, flightCode, priceCents)
	return args.Get(0).(domain.Attempt), args.Error(1)
}

func (m *MockPricing) Evaluate(ctx context.Context, userID, flightCode string) (int64, error) {
	args := m.Called(ctx, userID, flightCode)
	return args.Get(0).(int64), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

// stubTx runs the callback directly; purchase rollback semantics are covered
// by the repository integration tests.
type stubTx struct {
	calls int
}

func (s *stubTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.calls++
	return fn(ctx)
}

func outboundFlight() *domain.Flight {
	return &domain.Flight{
		ID:                1,
		Code:              "AI1042",
		Airline:           "Air India",
		DepartureCity:     "Delhi",
		ArrivalCity:       "Mumbai",
		BasePriceCents:    220000,
		CurrentPriceCents: 220000,
	}
}

func returnFlight() *domain.Flight {
	return &domain.Flight{
		ID:                2,
		Code:              "SG2042",
		Airline:           "SpiceJet",
		DepartureCity:     "Mumbai",
		ArrivalCity:       "Delhi",
		BasePriceCents:    200000,
		CurrentPriceCents: 200000,
	}
}

func testUser() *domain.User {
	return &domain.User{ID: 7, ExternalID: "alice", Name: "Alice", WalletBalanceCents: 1000000}
}

func TestBookingService_Purchase_RoundTrip(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}
	tx := &stubTx{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, tx)

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "AI1042").Return(outboundFlight(), nil).Once()
	mockFlights.On("GetByCode", ctx, "SG2042").Return(returnFlight(), nil).Once()
	mockWallet.On("Resolve", ctx, "alice").Return(testUser(), nil).Once()

	mockPricing.On("RecordAttempt", ctx, "alice", "AI1042", int64(220000)).Return(domain.Attempt{}, nil).Once()
	mockPricing.On("Evaluate", ctx, "alice", "AI1042").Return(int64(220000), nil).Once()
	mockPricing.On("RecordAttempt", ctx, "alice", "SG2042", int64(200000)).Return(domain.Attempt{}, nil).Once()
	mockPricing.On("Evaluate", ctx, "alice", "SG2042").Return(int64(200000), nil).Once()

	// (2200 + 2000) * 2 passengers = 8400, remaining 1600.
	mockWallet.On("Debit", ctx, int64(7), int64(840000)).Return(int64(160000), nil).Once()

	var created []domain.Booking
	mockBookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).
		Run(func(args mock.Arguments) {
			created = append(created, *args.Get(1).(*domain.Booking))
		}).Return(nil).Twice()

	result, err := service.Purchase(ctx, PurchaseInput{
		UserID:           "alice",
		FlightCode:       "AI1042",
		ReturnFlightCode: "SG2042",
		PassengerCount:   2,
		Passengers:       []domain.Passenger{{Name: "Alice"}, {Name: "Bob"}},
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(840000), result.TotalPriceCents)
	assert.Equal(t, int64(160000), result.RemainingBalanceCents)
	assert.NotNil(t, result.Return)
	assert.Empty(t, result.Warnings)

	assert.Len(t, created, 2)
	outb, ret := created[0], created[1]
	assert.False(t, outb.IsReturn)
	assert.True(t, ret.IsReturn)
	assert.Equal(t, "Delhi-Mumbai", outb.Route)
	assert.Equal(t, "Delhi-Mumbai", ret.Route) // return leg displays destination first
	assert.Equal(t, int64(440000), outb.PricePaidCents)
	assert.Equal(t, int64(400000), ret.PricePaidCents)
	assert.Equal(t, int64(220000), outb.PricePerPassengerCents)
	assert.Equal(t, int64(200000), ret.PricePerPassengerCents)

	assert.Len(t, outb.ReservationCode, 7)
	assert.Equal(t, byte('O'), outb.ReservationCode[6])
	assert.Equal(t, byte('R'), ret.ReservationCode[6])
	assert.Equal(t, outb.ReservationCode[:6], ret.ReservationCode[:6])

	assert.Equal(t, 1, tx.calls)
	mockBookings.AssertExpectations(t)
	mockWallet.AssertExpectations(t)
	mockPricing.AssertExpectations(t)
}

func TestBookingService_Purchase_InsufficientFundsCreatesNothing(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, &stubTx{})

	poorUser := &domain.User{ID: 7, ExternalID: "alice", Name: "Alice", WalletBalanceCents: 100000}

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "AI1042").Return(outboundFlight(), nil).Once()
	mockWallet.On("Resolve", ctx, "alice").Return(poorUser, nil).Once()
	mockPricing.On("RecordAttempt", ctx, "alice", "AI1042", int64(220000)).Return(domain.Attempt{}, nil).Once()
	mockPricing.On("Evaluate", ctx, "alice", "AI1042").Return(int64(220000), nil).Once()
	mockWallet.On("Debit", ctx, int64(7), int64(220000)).Return(int64(0), domain.ErrInsufficientFunds).Once()

	_, err := service.Purchase(ctx, PurchaseInput{
		UserID:         "alice",
		FlightCode:     "AI1042",
		PassengerCount: 1,
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	mockBookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	// The failure reports the shortfall so the caller can show both amounts.
	var fundsErr *domain.InsufficientFundsError
	assert.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, int64(100000), fundsErr.AvailableCents)
	assert.Equal(t, int64(220000), fundsErr.RequiredCents)
}

func TestBookingService_Purchase_MissingFlightFailsBeforeCharge(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, &stubTx{})

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "XX0000").Return(nil, domain.ErrFlightNotFound).Once()

	_, err := service.Purchase(ctx, PurchaseInput{UserID: "alice", FlightCode: "XX0000"})

	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
	mockWallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
	mockBookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBookingService_Purchase_MissingReturnFlightFailsBeforeCharge(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, &stubTx{})

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "AI1042").Return(outboundFlight(), nil).Once()
	mockFlights.On("GetByCode", ctx, "XX0000").Return(nil, domain.ErrFlightNotFound).Once()

	_, err := service.Purchase(ctx, PurchaseInput{
		UserID:           "alice",
		FlightCode:       "AI1042",
		ReturnFlightCode: "XX0000",
	})

	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
	mockWallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_Purchase_MissingUserFailsBeforeCharge(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, &stubTx{})

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "AI1042").Return(outboundFlight(), nil).Once()
	mockWallet.On("Resolve", ctx, "nobody").Return(nil, domain.ErrUserNotFound).Once()

	_, err := service.Purchase(ctx, PurchaseInput{UserID: "nobody", FlightCode: "AI1042"})

	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	mockWallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_Purchase_PricingFailureFallsBackToLastKnownPrice(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, &stubTx{})

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "AI1042").Return(outboundFlight(), nil).Once()
	mockWallet.On("Resolve", ctx, "alice").Return(testUser(), nil).Once()
	mockPricing.On("RecordAttempt", ctx, "alice", "AI1042", int64(220000)).Return(domain.Attempt{}, nil).Once()
	mockPricing.On("Evaluate", ctx, "alice", "AI1042").Return(int64(0), errors.New("redis unavailable")).Once()
	mockWallet.On("Debit", ctx, int64(7), int64(220000)).Return(int64(780000), nil).Once()
	mockBookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()

	result, err := service.Purchase(ctx, PurchaseInput{
		UserID:         "alice",
		FlightCode:     "AI1042",
		PassengerCount: 1,
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(220000), result.TotalPriceCents)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "AI1042")
	mockWallet.AssertExpectations(t)
}

func TestBookingService_Purchase_ClampsPassengerCount(t *testing.T) {
	testCases := []struct {
		name      string
		requested int
		expected  int
	}{
		{name: "zero becomes one", requested: 0, expected: 1},
		{name: "negative becomes one", requested: -3, expected: 1},
		{name: "fifteen becomes nine", requested: 15, expected: 9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockBookings := &MockBookingRepository{}
			mockFlights := &MockFlightRepository{}
			mockWallet := &MockWallet{}
			mockPricing := &MockPricing{}

			service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, &stubTx{})

			ctx := context.Background()
			mockFlights.On("GetByCode", ctx, "AI1042").Return(outboundFlight(), nil).Once()
			mockWallet.On("Resolve", ctx, "alice").Return(testUser(), nil).Once()
			mockPricing.On("RecordAttempt", ctx, "alice", "AI1042", int64(220000)).Return(domain.Attempt{}, nil).Once()
			mockPricing.On("Evaluate", ctx, "alice", "AI1042").Return(int64(220000), nil).Once()
			mockWallet.On("Debit", ctx, int64(7), int64(220000)*int64(tc.expected)).Return(int64(1), nil).Once()

			var booked domain.Booking
			mockBookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).
				Run(func(args mock.Arguments) {
					booked = *args.Get(1).(*domain.Booking)
				}).Return(nil).Once()

			_, err := service.Purchase(ctx, PurchaseInput{
				UserID:         "alice",
				FlightCode:     "AI1042",
				PassengerCount: tc.requested,
			})

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, booked.PassengerCount)
			assert.Len(t, booked.Passengers, tc.expected)
			mockWallet.AssertExpectations(t)
		})
	}
}

func TestBookingService_Purchase_PadsPassengerDetails(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, &stubTx{})

	age := 34
	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "AI1042").Return(outboundFlight(), nil).Once()
	mockWallet.On("Resolve", ctx, "alice").Return(testUser(), nil).Once()
	mockPricing.On("RecordAttempt", ctx, "alice", "AI1042", int64(220000)).Return(domain.Attempt{}, nil).Once()
	mockPricing.On("Evaluate", ctx, "alice", "AI1042").Return(int64(220000), nil).Once()
	mockWallet.On("Debit", ctx, int64(7), int64(660000)).Return(int64(340000), nil).Once()

	var booked domain.Booking
	mockBookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).
		Run(func(args mock.Arguments) {
			booked = *args.Get(1).(*domain.Booking)
		}).Return(nil).Once()

	_, err := service.Purchase(ctx, PurchaseInput{
		UserID:         "alice",
		FlightCode:     "AI1042",
		PassengerCount: 3,
		Passengers:     []domain.Passenger{{Name: "Carol", Age: &age}},
	})

	assert.NoError(t, err)
	assert.Len(t, booked.Passengers, 3)
	assert.Equal(t, "Carol", booked.Passengers[0].Name)
	assert.Equal(t, &age, booked.Passengers[0].Age)
	assert.Equal(t, "Alice #2", booked.Passengers[1].Name)
	assert.Equal(t, "Alice #3", booked.Passengers[2].Name)
}

func TestBookingService_Purchase_RetriesOnReservationCodeCollision(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}
	tx := &stubTx{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, tx)

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "AI1042").Return(outboundFlight(), nil).Once()
	mockWallet.On("Resolve", ctx, "alice").Return(testUser(), nil).Once()
	mockPricing.On("RecordAttempt", ctx, "alice", "AI1042", int64(220000)).Return(domain.Attempt{}, nil).Once()
	mockPricing.On("Evaluate", ctx, "alice", "AI1042").Return(int64(220000), nil).Once()

	// Each retry reruns the whole transaction, debit included.
	mockWallet.On("Debit", ctx, int64(7), int64(220000)).Return(int64(780000), nil).Twice()
	mockBookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).Return(domain.ErrReservationCodeTaken).Once()
	mockBookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()

	result, err := service.Purchase(ctx, PurchaseInput{
		UserID:         "alice",
		FlightCode:     "AI1042",
		PassengerCount: 1,
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, tx.calls)
	assert.NotEmpty(t, result.Outbound.ReservationCode)
	mockBookings.AssertExpectations(t)
	mockWallet.AssertExpectations(t)
}

func TestBookingService_Purchase_TicketPublishFailureIsSoftWarning(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}
	mockProducer := &MockProducer{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, &stubTx{},
		WithTicketEvents(mockProducer, "ticket_requests"))

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "AI1042").Return(outboundFlight(), nil).Once()
	mockWallet.On("Resolve", ctx, "alice").Return(testUser(), nil).Once()
	mockPricing.On("RecordAttempt", ctx, "alice", "AI1042", int64(220000)).Return(domain.Attempt{}, nil).Once()
	mockPricing.On("Evaluate", ctx, "alice", "AI1042").Return(int64(220000), nil).Once()
	mockWallet.On("Debit", ctx, int64(7), int64(220000)).Return(int64(780000), nil).Once()
	mockBookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()
	mockProducer.On("Publish", ctx, "ticket_requests", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	result, err := service.Purchase(ctx, PurchaseInput{
		UserID:         "alice",
		FlightCode:     "AI1042",
		PassengerCount: 1,
	})

	assert.NoError(t, err)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "ticket")
	mockProducer.AssertExpectations(t)
}

func TestBookingService_ListByUser(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockWallet := &MockWallet{}
	mockPricing := &MockPricing{}

	service := NewBookingService(mockBookings, mockFlights, mockWallet, mockPricing, &stubTx{})

	ctx := context.Background()
	mockWallet.On("Resolve", ctx, "alice").Return(testUser(), nil).Once()
	mockBookings.On("ListByUser", ctx, int64(7)).Return([]domain.Booking{{ID: 1}, {ID: 2}}, nil).Once()

	bookings, err := service.ListByUser(ctx, "alice")

	assert.NoError(t, err)
	assert.Len(t, bookings, 2)
	mockBookings.AssertExpectations(t)
}
