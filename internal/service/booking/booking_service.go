package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airticketing/internal/codes"
	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/kafka"
	"github.com/Domenick1991/airticketing/internal/logging"
	"github.com/Domenick1991/airticketing/internal/metrics"
	"github.com/Domenick1991/airticketing/internal/pricing"
	"github.com/Domenick1991/airticketing/internal/repository"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByCode(ctx context.Context, code string) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error)
	ListByFlight(ctx context.Context, flightID int64, limit, offset int) ([]domain.Booking, error)
	ConfirmBooking(ctx context.Context, id int64) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id int64) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
}

// Cache is the part of the Redis layer bookings need: a per-flight mutex for
// seat mutations and invalidation of the cached flight list.
type Cache interface {
	AcquireFlightLock(ctx context.Context, flightID int64, ttl time.Duration) (string, bool, error)
	ReleaseFlightLock(ctx context.Context, flightID int64, token string) error
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type CreateBookingInput struct {
	FlightID    int64
	UserID      int64
	FareClass   domain.FareClass
	TotalAmount float64
	Passengers  []domain.Passenger
}

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 50 * time.Millisecond
	defaultLockTTL      = 10 * time.Second
)

type BookingService struct {
	bookings           repository.BookingRepository
	flights            repository.FlightRepository
	users              repository.UserRepository
	cache              Cache
	producer           Producer
	pricing            *pricing.Engine
	bookingTopic       string
	notificationsTopic string
	maxRetries         int
	retryBackoff       time.Duration
	lockTTL            time.Duration
	codeAttempts       int
	newCode            codes.Generator
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithMaxRetries(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func WithRetryBackoff(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.retryBackoff = d
	}
}

func WithLockTTL(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

func WithCodeAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		s.codeAttempts = n
	}
}

func withCodeGenerator(gen codes.Generator) BookingServiceOption {
	return func(s *BookingService) {
		s.newCode = gen
	}
}

// NewBookingService wires the booking lifecycle. cache, producer and engine
// may be nil; without a cache the database row lock is the only guard.
func NewBookingService(
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	users repository.UserRepository,
	cache Cache,
	producer Producer,
	engine *pricing.Engine,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	if engine == nil {
		engine = pricing.NewEngine()
	}
	service := &BookingService{
		bookings:     bookings,
		flights:      flights,
		users:        users,
		cache:        cache,
		producer:     producer,
		pricing:      engine,
		bookingTopic: bookingTopic,
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
		lockTTL:      defaultLockTTL,
		codeAttempts: codes.DefaultMaxAttempts,
		newCode:      codes.BookingCode,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	logger := logging.Ctx(ctx).With().Int64("flight_id", input.FlightID).Int64("user_id", input.UserID).Logger()

	if err := domain.ValidatePassengers(input.Passengers); err != nil {
		return nil, err
	}
	if input.TotalAmount < 0 {
		return nil, fmt.Errorf("%w: total amount must not be negative", domain.ErrInvalidRequest)
	}
	seats := domain.SeatCount(input.Passengers)

	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	total := input.TotalAmount
	if input.FareClass != "" {
		available, err := flight.AvailableSeatsFor(input.FareClass)
		if err != nil {
			return nil, fmt.Errorf("%w: fare class %s is not offered on flight %d", domain.ErrInvalidRequest, input.FareClass, flight.ID)
		}
		if available < seats {
			metrics.InventoryRejections.Inc()
			return nil, fmt.Errorf("%w: %d %s seat(s) left, %d requested", domain.ErrInsufficientInventory, available, input.FareClass, seats)
		}
		if total <= 0 {
			quote, err := s.pricing.Quote(flight, input.FareClass, seats)
			if err != nil {
				return nil, err
			}
			total = quote.Total
		}
	}
	// Fast path only; the conditional decrement in storage is authoritative.
	if flight.AvailableSeats < seats {
		metrics.InventoryRejections.Inc()
		return nil, fmt.Errorf("%w: %d seat(s) left, %d requested", domain.ErrInsufficientInventory, flight.AvailableSeats, seats)
	}

	passengers := make([]domain.Passenger, len(input.Passengers))
	copy(passengers, input.Passengers)

	var booking *domain.Booking
	err = s.withFlightLock(ctx, flight.ID, func() error {
		_, err := codes.Claim(ctx, s.newCode, s.bookings.ExistsByCode, s.codeAttempts, func(code string) error {
			candidate := &domain.Booking{
				BookingCode: code,
				FlightID:    flight.ID,
				UserID:      user.ID,
				FareClass:   input.FareClass,
				SeatsHeld:   seats,
				TotalAmount: total,
				Status:      domain.BookingStatusPending,
				Passengers:  passengers,
			}
			if err := s.bookings.Create(ctx, candidate); err != nil {
				return err
			}
			booking = candidate
			return nil
		}, codeTaken)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientInventory) {
			metrics.InventoryRejections.Inc()
		}
		logger.Warn().Err(err).Int("seats", seats).Msg("booking rejected")
		return nil, err
	}

	booking.User = user
	metrics.BookingsCreated.Inc()
	metrics.SeatsReserved.Add(float64(seats))
	s.invalidate(ctx)
	s.publish(ctx, kafka.EventBookingCreated, booking)
	logger.Info().Str("booking_code", booking.BookingCode).Int("seats", seats).Msg("booking created")
	return booking, nil
}

func (s *BookingService) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	return s.bookings.GetByCode(ctx, code)
}

func (s *BookingService) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	limit, offset = repository.Page(limit, offset)
	return s.bookings.ListByUser(ctx, userID, limit, offset)
}

func (s *BookingService) ListByFlight(ctx context.Context, flightID int64, limit, offset int) ([]domain.Booking, error) {
	limit, offset = repository.Page(limit, offset)
	return s.bookings.ListByFlight(ctx, flightID, limit, offset)
}

// ConfirmBooking moves a PENDING booking to CONFIRMED. Confirming an already
// confirmed booking returns it unchanged.
func (s *BookingService) ConfirmBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusConfirmed {
		return current, nil
	}
	if !current.Status.CanTransitionTo(domain.BookingStatusConfirmed) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, domain.BookingStatusConfirmed)
	}

	var updated *domain.Booking
	if err := s.retry(ctx, func() error {
		var err error
		updated, err = s.bookings.Confirm(ctx, id)
		return err
	}); err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(domain.BookingStatusConfirmed)).Inc()
	s.publish(ctx, kafka.EventBookingConfirmed, updated)
	return updated, nil
}

// CancelBooking returns the booking's seats to the flight exactly once.
// Cancelling a cancelled booking is a no-op that returns it as is.
func (s *BookingService) CancelBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusCancelled {
		return current, nil
	}

	var (
		updated  *domain.Booking
		released bool
	)
	err = s.withFlightLock(ctx, current.FlightID, func() error {
		var err error
		updated, released, err = s.bookings.Cancel(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !released {
		return updated, nil
	}

	metrics.BookingTransitions.WithLabelValues(string(domain.BookingStatusCancelled)).Inc()
	metrics.SeatsReleased.Add(float64(updated.SeatsHeld))
	s.invalidate(ctx)
	s.publish(ctx, kafka.EventBookingCancelled, updated)
	logging.Ctx(ctx).Info().Int64("booking_id", id).Int("seats", updated.SeatsHeld).Msg("booking cancelled")
	return updated, nil
}

// UpdateStatus applies an administrative status change through the
// transition table. Cancellation takes the same path as CancelBooking so
// seats are restored.
func (s *BookingService) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	switch status {
	case domain.BookingStatusCancelled:
		return s.CancelBooking(ctx, id)
	case domain.BookingStatusConfirmed:
		return s.ConfirmBooking(ctx, id)
	}

	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, status)
}

// DeleteBooking removes the booking without restoring seats.
func (s *BookingService) DeleteBooking(ctx context.Context, id int64) error {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.bookings.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, kafka.EventBookingDeleted, current)
	return nil
}

// withFlightLock runs fn under the flight's Redis lock and retries it while
// it reports a concurrency conflict.
func (s *BookingService) withFlightLock(ctx context.Context, flightID int64, fn func() error) error {
	return s.retry(ctx, func() error {
		if s.cache == nil {
			return fn()
		}
		token, ok, err := s.cache.AcquireFlightLock(ctx, flightID, s.lockTTL)
		if err != nil {
			// Redis being down must not stop sales; storage still serializes.
			logging.Ctx(ctx).Warn().Err(err).Int64("flight_id", flightID).Msg("flight lock unavailable")
			return fn()
		}
		if !ok {
			return fmt.Errorf("%w: flight %d is locked", domain.ErrConcurrencyConflict, flightID)
		}
		defer func() {
			if err := s.cache.ReleaseFlightLock(context.WithoutCancel(ctx), flightID, token); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Int64("flight_id", flightID).Msg("release flight lock")
			}
		}()
		return fn()
	})
}

func (s *BookingService) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
			case <-time.After(time.Duration(attempt) * s.retryBackoff):
			}
		}
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
		metrics.SeatConflicts.Inc()
	}
	return err
}

func (s *BookingService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("invalidate flights cache")
	}
}

// publish never fails the caller; the booking is already committed.
func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil {
		return
	}
	event := kafka.NewBookingEvent(eventType, booking)
	for _, topic := range []string{s.bookingTopic, s.notificationsTopic} {
		if topic == "" {
			continue
		}
		if err := s.producer.Publish(ctx, topic, booking.BookingCode, event); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("topic", topic).
				Str("event", eventType).
				Str("booking_code", booking.BookingCode).
				Msg("publish booking event")
		}
	}
}

func codeTaken(err error) bool {
	return errors.Is(err, repository.ErrCodeTaken)
}

var _ BookingUseCase = (*BookingService)(nil)
