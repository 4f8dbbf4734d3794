package flights

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Search(ctx context.Context, filter domain.FlightFilter, limit, offset int) ([]domain.Flight, error) {
	args := m.Called(ctx, filter, limit, offset)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	args := m.Called(ctx, flight)
	return args.Error(0)
}

// Update applies fn to the flight the expectation returns, as storage would
// to the locked row.
func (m *MockFlightRepository) Update(ctx context.Context, id int64, apply func(*domain.Flight) error) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	flight := args.Get(0).(*domain.Flight)
	if err := apply(flight); err != nil {
		return nil, err
	}
	if err := flight.Validate(); err != nil {
		return nil, err
	}
	return flight, args.Error(1)
}

func (m *MockFlightRepository) SetFareClassPrice(ctx context.Context, flightID int64, price domain.FareClassPrice) (*domain.Flight, error) {
	args := m.Called(ctx, flightID, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	args := m.Called(ctx, flights)
	return args.Error(0)
}

func (m *MockCache) InvalidateFlights(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireFlightLock(ctx context.Context, flightID int64, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, flightID, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLocker) ReleaseFlightLock(ctx context.Context, flightID int64, token string) error {
	args := m.Called(ctx, flightID, token)
	return args.Error(0)
}

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func sampleFlight() *domain.Flight {
	f := &domain.Flight{
		ID:             4,
		FlightNumber:   "AL100",
		FromAirport:    "SVO",
		ToAirport:      "LED",
		DepartureTime:  now.AddDate(0, 0, 3),
		ArrivalTime:    now.AddDate(0, 0, 3).Add(time.Hour),
		TotalCapacity:  100,
		AvailableSeats: 100,
		Status:         domain.FlightStatusScheduled,
	}
	_ = f.AddFareClassPrice(domain.FareClassEconomy, 200, 15)
	return f
}

func TestFlightService_List_CacheMiss(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := NewFlightService(mockRepo, mockCache, nil)
	ctx := context.Background()

	flights := []domain.Flight{*sampleFlight()}

	mockCache.On("GetFlights", ctx).Return(([]domain.Flight)(nil), nil).Once()
	mockRepo.On("List", ctx).Return(flights, nil).Once()
	mockCache.On("SetFlights", ctx, flights).Return(nil).Once()

	result, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, flights, result)
	mockCache.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

func TestFlightService_List_CacheHit(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := NewFlightService(mockRepo, mockCache, nil)
	ctx := context.Background()

	flights := []domain.Flight{*sampleFlight()}
	mockCache.On("GetFlights", ctx).Return(flights, nil).Once()

	result, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, flights, result)
	mockRepo.AssertNotCalled(t, "List", mock.Anything)
}

func TestFlightService_List_CacheErrorFallsBackToRepo(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := NewFlightService(mockRepo, mockCache, nil)
	ctx := context.Background()

	flights := []domain.Flight{*sampleFlight()}
	mockCache.On("GetFlights", ctx).Return(([]domain.Flight)(nil), errors.New("redis down")).Once()
	mockRepo.On("List", ctx).Return(flights, nil).Once()
	mockCache.On("SetFlights", ctx, flights).Return(errors.New("redis down")).Once()

	result, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, flights, result)
}

func TestFlightService_List_NoCache(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := NewFlightService(mockRepo, nil, nil)
	ctx := context.Background()

	mockRepo.On("List", ctx).Return([]domain.Flight{}, nil).Once()

	result, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Empty(t, result)
}

func TestFlightService_Create_ValidatesSeatMapBeforeStorage(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := NewFlightService(mockRepo, mockCache, nil)

	_, err := service.Create(context.Background(), FlightInput{
		FlightNumber:           "al200",
		FromAirport:            "svo",
		ToAirport:              "led",
		DepartureTime:          now,
		ArrivalTime:            now.Add(time.Hour),
		TotalCapacity:          100,
		FareClassPrices:        map[domain.FareClass]float64{domain.FareClassEconomy: 100, domain.FareClassBusiness: 400},
		AvailableSeatsPerClass: map[domain.FareClass]int{domain.FareClassEconomy: 80},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFlightService_Create_Success(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := NewFlightService(mockRepo, mockCache, nil)
	ctx := context.Background()

	mockRepo.On("Create", ctx, mock.MatchedBy(func(f *domain.Flight) bool {
		return f.FlightNumber == "AL200" && f.AvailableSeats == 100 && len(f.FareClassPrices) == 2 &&
			f.Status == domain.FlightStatusScheduled && f.FromAirport == "SVO"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Flight).ID = 11
	}).Return(nil).Once()
	mockCache.On("InvalidateFlights", ctx).Return(nil).Once()

	flight, err := service.Create(ctx, FlightInput{
		FlightNumber:           "al200",
		FromAirport:            "svo",
		ToAirport:              "led",
		DepartureTime:          now,
		ArrivalTime:            now.Add(time.Hour),
		TotalCapacity:          100,
		FareClassPrices:        map[domain.FareClass]float64{domain.FareClassEconomy: 100, domain.FareClassBusiness: 400},
		AvailableSeatsPerClass: map[domain.FareClass]int{domain.FareClassEconomy: 80, domain.FareClassBusiness: 20},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(11), flight.ID)
	mockRepo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

func TestFlightService_Create_RejectsOversoldClasses(t *testing.T) {
	service := NewFlightService(&MockFlightRepository{}, nil, nil)

	_, err := service.Create(context.Background(), FlightInput{
		FlightNumber:           "AL300",
		DepartureTime:          now,
		ArrivalTime:            now.Add(time.Hour),
		TotalCapacity:          50,
		FareClassPrices:        map[domain.FareClass]float64{domain.FareClassEconomy: 100},
		AvailableSeatsPerClass: map[domain.FareClass]int{domain.FareClassEconomy: 60},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestFlightService_Update_KeepsInventoryWhenOmitted(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := NewFlightService(mockRepo, nil, nil)
	ctx := context.Background()

	current := sampleFlight()
	current.AvailableSeats = 97
	mockRepo.On("Update", ctx, int64(4)).Return(current, nil).Once()

	updated, err := service.Update(ctx, 4, FlightInput{
		FlightNumber:  "AL100",
		FromAirport:   "SVO",
		ToAirport:     "LED",
		DepartureTime: now.AddDate(0, 0, 4),
		ArrivalTime:   now.AddDate(0, 0, 4).Add(time.Hour),
		Status:        "delayed",
		TotalCapacity: 100,
	})

	require.NoError(t, err)
	assert.Equal(t, 97, updated.AvailableSeats)
	assert.Equal(t, domain.FlightStatusDelayed, updated.Status)
	seats, err := updated.AvailableSeatsFor(domain.FareClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 15, seats)
	mockRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// racingStore is a flight store in which a booking commits on the first
// access, before the update gets to the row lock.
type racingStore struct {
	MockFlightRepository
	mu     sync.Mutex
	flight domain.Flight
	book   sync.Once
}

func (s *racingStore) bookThree() {
	s.book.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.flight.AvailableSeats -= 3
		s.flight.FareClassPrices[0].AvailableSeats -= 3
	})
}

func (s *racingStore) snapshot() *domain.Flight {
	f := s.flight
	f.FareClassPrices = append([]domain.FareClassPrice(nil), s.flight.FareClassPrices...)
	return &f
}

func (s *racingStore) GetByID(_ context.Context, _ int64) (*domain.Flight, error) {
	s.mu.Lock()
	f := s.snapshot()
	s.mu.Unlock()
	s.bookThree()
	return f, nil
}

func (s *racingStore) Update(_ context.Context, _ int64, apply func(*domain.Flight) error) (*domain.Flight, error) {
	s.bookThree()
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.snapshot()
	if err := apply(f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.flight = *f
	return s.snapshot(), nil
}

func TestFlightService_Update_DoesNotUndoConcurrentBooking(t *testing.T) {
	store := &racingStore{flight: *sampleFlight()}
	service := NewFlightService(store, nil, nil)

	_, err := service.Update(context.Background(), 4, FlightInput{
		FlightNumber:  "AL100",
		FromAirport:   "SVO",
		ToAirport:     "LED",
		DepartureTime: now.AddDate(0, 0, 3),
		ArrivalTime:   now.AddDate(0, 0, 3).Add(time.Hour),
		Status:        "DELAYED",
		TotalCapacity: 100,
	})
	require.NoError(t, err)

	stored, err := store.GetByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 97, stored.AvailableSeats)
	assert.Equal(t, domain.FlightStatusDelayed, stored.Status)
	economy, err := stored.AvailableSeatsFor(domain.FareClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 12, economy)
}

func TestFlightService_Update_ExplicitSeatsValidatedAgainstLockedRow(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := NewFlightService(mockRepo, nil, nil)
	ctx := context.Background()

	mockRepo.On("Update", ctx, int64(4)).Return(sampleFlight(), nil).Once()
	seats := 120
	_, err := service.Update(ctx, 4, FlightInput{
		FlightNumber:   "AL100",
		DepartureTime:  now,
		ArrivalTime:    now.Add(time.Hour),
		TotalCapacity:  100,
		AvailableSeats: &seats,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestFlightService_Update_TakesFlightLock(t *testing.T) {
	ctx := context.Background()
	input := FlightInput{FlightNumber: "AL100", DepartureTime: now, ArrivalTime: now.Add(time.Hour), TotalCapacity: 100}

	t.Run("held", func(t *testing.T) {
		mockRepo := &MockFlightRepository{}
		locker := &MockLocker{}
		service := NewFlightService(mockRepo, nil, nil, WithFlightLock(locker, time.Second))
		locker.On("AcquireFlightLock", ctx, int64(4), time.Second).Return("", false, nil).Once()

		_, err := service.Update(ctx, 4, input)

		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("acquired and released", func(t *testing.T) {
		mockRepo := &MockFlightRepository{}
		locker := &MockLocker{}
		service := NewFlightService(mockRepo, nil, nil, WithFlightLock(locker, time.Second))
		locker.On("AcquireFlightLock", ctx, int64(4), time.Second).Return("tok", true, nil).Once()
		locker.On("ReleaseFlightLock", mock.Anything, int64(4), "tok").Return(nil).Once()
		mockRepo.On("Update", ctx, int64(4)).Return(sampleFlight(), nil).Once()

		_, err := service.Update(ctx, 4, input)

		require.NoError(t, err)
		locker.AssertExpectations(t)
	})

	t.Run("redis down falls back to row lock", func(t *testing.T) {
		mockRepo := &MockFlightRepository{}
		locker := &MockLocker{}
		service := NewFlightService(mockRepo, nil, nil, WithFlightLock(locker, time.Second))
		locker.On("AcquireFlightLock", ctx, int64(4), time.Second).Return("", false, errors.New("dial tcp")).Once()
		mockRepo.On("Update", ctx, int64(4)).Return(sampleFlight(), nil).Once()

		_, err := service.Update(ctx, 4, input)

		require.NoError(t, err)
		locker.AssertNotCalled(t, "ReleaseFlightLock", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestFlightService_Search(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := NewFlightService(mockRepo, nil, nil)
	ctx := context.Background()

	filter := domain.FlightFilter{From: "SVO", DepartFrom: now, DepartTo: now.AddDate(0, 0, 1)}
	mockRepo.On("Search", ctx, filter, 50, 0).Return([]domain.Flight{*sampleFlight()}, nil).Once()
	mockRepo.On("Search", ctx, domain.FlightFilter{}, 200, 10).Return([]domain.Flight{}, nil).Once()

	found, err := service.Search(ctx, filter, 0, -1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = service.Search(ctx, domain.FlightFilter{}, 1000, 10)
	require.NoError(t, err)

	_, err = service.Search(ctx, domain.FlightFilter{DepartFrom: now, DepartTo: now}, 10, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	mockRepo.AssertExpectations(t)
}

func TestFlightService_AvailableSeats(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := NewFlightService(mockRepo, nil, nil)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(4)).Return(sampleFlight(), nil)

	total, err := service.AvailableSeats(ctx, 4, "")
	require.NoError(t, err)
	assert.Equal(t, 100, total)

	economy, err := service.AvailableSeats(ctx, 4, domain.FareClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 15, economy)

	_, err = service.AvailableSeats(ctx, 4, domain.FareClassFirst)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFlightService_QuotePrice(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	engine := pricing.NewEngine(pricing.WithClock(func() time.Time { return now }))
	service := NewFlightService(mockRepo, nil, engine)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(4)).Return(sampleFlight(), nil)

	quote, err := service.QuotePrice(ctx, 4, domain.FareClassEconomy, 1)
	require.NoError(t, err)
	assert.Equal(t, 312.00, quote.PricePerPassenger)

	_, err = service.QuotePrice(ctx, 4, domain.FareClassBusiness, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestFlightService_SetFareClassPrice(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := NewFlightService(mockRepo, mockCache, nil)
	ctx := context.Background()

	_, err := service.SetFareClassPrice(ctx, 4, domain.FareClassBusiness, 0, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	updated := sampleFlight()
	_ = updated.AddFareClassPrice(domain.FareClassBusiness, 900, 5)
	mockRepo.On("SetFareClassPrice", ctx, int64(4), domain.FareClassPrice{
		FareClass: domain.FareClassBusiness, BasePrice: 900, CurrentPrice: 900, AvailableSeats: 5,
	}).Return(updated, nil).Once()
	mockCache.On("InvalidateFlights", ctx).Return(nil).Once()

	flight, err := service.SetFareClassPrice(ctx, 4, domain.FareClassBusiness, 900, 5)
	require.NoError(t, err)
	assert.Len(t, flight.FareClassPrices, 2)
	mockRepo.AssertExpectations(t)
}

func TestFlightService_Delete_NotFound(t *testing.T) {
	mockRepo := &MockFlightRepository{}
	service := NewFlightService(mockRepo, nil, nil)
	ctx := context.Background()

	mockRepo.On("Delete", ctx, int64(9)).Return(domain.ErrNotFound).Once()

	assert.ErrorIs(t, service.Delete(ctx, 9), domain.ErrNotFound)
}
