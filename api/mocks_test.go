package api

import (
	"context"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/pricing"
	"github.com/Domenick1991/airticketing/internal/service/booking"
	"github.com/Domenick1991/airticketing/internal/service/flights"
	"github.com/Domenick1991/airticketing/internal/service/payment"
	"github.com/stretchr/testify/mock"
)

type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Search(ctx context.Context, filter domain.FlightFilter, limit, offset int) ([]domain.Flight, error) {
	args := m.Called(ctx, filter, limit, offset)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Create(ctx context.Context, input flights.FlightInput) (*domain.Flight, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Update(ctx context.Context, id int64, input flights.FlightInput) (*domain.Flight, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) SetFareClassPrice(ctx context.Context, flightID int64, class domain.FareClass, price float64, seats int) (*domain.Flight, error) {
	args := m.Called(ctx, flightID, class, price, seats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFlightUseCase) AvailableSeats(ctx context.Context, flightID int64, class domain.FareClass) (int, error) {
	args := m.Called(ctx, flightID, class)
	return args.Int(0), args.Error(1)
}

func (m *MockFlightUseCase) QuotePrice(ctx context.Context, flightID int64, class domain.FareClass, passengers int) (*pricing.Quote, error) {
	args := m.Called(ctx, flightID, class, passengers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Quote), args.Error(1)
}

type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) booking(args mock.Arguments) (*domain.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*domain.Booking, error) {
	return m.booking(m.Called(ctx, input))
}

func (m *MockBookingUseCase) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return m.booking(m.Called(ctx, id))
}

func (m *MockBookingUseCase) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	return m.booking(m.Called(ctx, code))
}

func (m *MockBookingUseCase) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ListByFlight(ctx context.Context, flightID int64, limit, offset int) ([]domain.Booking, error) {
	args := m.Called(ctx, flightID, limit, offset)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ConfirmBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return m.booking(m.Called(ctx, id))
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return m.booking(m.Called(ctx, id))
}

func (m *MockBookingUseCase) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	return m.booking(m.Called(ctx, id, status))
}

func (m *MockBookingUseCase) DeleteBooking(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) payment(args mock.Arguments) (*domain.Payment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentUseCase) CreatePayment(ctx context.Context, input payment.CreatePaymentInput) (*domain.Payment, error) {
	return m.payment(m.Called(ctx, input))
}

func (m *MockPaymentUseCase) UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Payment, error) {
	return m.payment(m.Called(ctx, id, status))
}

func (m *MockPaymentUseCase) UpdateStatusByReference(ctx context.Context, reference string, status domain.PaymentStatus) (*domain.Payment, error) {
	return m.payment(m.Called(ctx, reference, status))
}

func (m *MockPaymentUseCase) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	return m.payment(m.Called(ctx, id))
}

func (m *MockPaymentUseCase) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	return m.payment(m.Called(ctx, reference))
}

func (m *MockPaymentUseCase) ListByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).([]domain.Payment), args.Error(1)
}

func (m *MockPaymentUseCase) ListByStatus(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]domain.Payment, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]domain.Payment), args.Error(1)
}

func (m *MockPaymentUseCase) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
