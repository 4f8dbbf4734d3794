package flights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/metrics"
	"github.com/Domenick1991/airticketing/internal/pricing"
	"github.com/Domenick1991/airticketing/internal/repository"
	"github.com/rs/zerolog/log"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	Search(ctx context.Context, filter domain.FlightFilter, limit, offset int) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetByNumber(ctx context.Context, number string) (*domain.Flight, error)
	Create(ctx context.Context, input FlightInput) (*domain.Flight, error)
	Update(ctx context.Context, id int64, input FlightInput) (*domain.Flight, error)
	SetFareClassPrice(ctx context.Context, flightID int64, class domain.FareClass, price float64, seats int) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
	AvailableSeats(ctx context.Context, flightID int64, class domain.FareClass) (int, error)
	QuotePrice(ctx context.Context, flightID int64, class domain.FareClass, passengers int) (*pricing.Quote, error)
}

type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

// FlightInput is what create and update accept. Every key of FareClassPrices
// must also be present in AvailableSeatsPerClass.
type FlightInput struct {
	FlightNumber           string
	Airline                string
	FromAirport            string
	ToAirport              string
	DepartureTime          time.Time
	ArrivalTime            time.Time
	Status                 string
	TotalCapacity          int
	AvailableSeats         *int
	FareClassPrices        map[domain.FareClass]float64
	AvailableSeatsPerClass map[domain.FareClass]int
}

// FlightLocker is the per-flight mutex shared with the booking service.
type FlightLocker interface {
	AcquireFlightLock(ctx context.Context, flightID int64, ttl time.Duration) (string, bool, error)
	ReleaseFlightLock(ctx context.Context, flightID int64, token string) error
}

type FlightService struct {
	repo    repository.FlightRepository
	cache   FlightCache
	pricing *pricing.Engine
	locker  FlightLocker
	lockTTL time.Duration
}

type FlightServiceOption func(*FlightService)

// WithFlightLock makes inventory edits take the same Redis lock bookings take.
func WithFlightLock(locker FlightLocker, ttl time.Duration) FlightServiceOption {
	return func(s *FlightService) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func NewFlightService(repo repository.FlightRepository, cache FlightCache, engine *pricing.Engine, opts ...FlightServiceOption) *FlightService {
	if engine == nil {
		engine = pricing.NewEngine()
	}
	service := &FlightService{repo: repo, cache: cache, pricing: engine, lockTTL: 10 * time.Second}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			log.Warn().Err(err).Msg("cache flights")
		}
	}
	return flights, nil
}

func (s *FlightService) Search(ctx context.Context, filter domain.FlightFilter, limit, offset int) ([]domain.Flight, error) {
	if !filter.DepartFrom.IsZero() && !filter.DepartTo.IsZero() && !filter.DepartTo.After(filter.DepartFrom) {
		return nil, fmt.Errorf("%w: departure range is empty", domain.ErrInvalidRequest)
	}
	limit, offset = repository.Page(limit, offset)
	return s.repo.Search(ctx, filter, limit, offset)
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *FlightService) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	return s.repo.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
}

func (s *FlightService) Create(ctx context.Context, input FlightInput) (*domain.Flight, error) {
	flight := &domain.Flight{Status: domain.FlightStatusScheduled}
	if err := applyInput(flight, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, flight); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	log.Info().Int64("flight_id", flight.ID).Str("flight_number", flight.FlightNumber).Msg("flight created")
	return flight, nil
}

// Update applies input to the flight as storage holds it under the row lock.
// Omitted seat counters keep their locked values, so bookings that committed
// meanwhile are not undone.
func (s *FlightService) Update(ctx context.Context, id int64, input FlightInput) (*domain.Flight, error) {
	var flight *domain.Flight
	err := s.withFlightLock(ctx, id, func() error {
		var err error
		flight, err = s.repo.Update(ctx, id, func(current *domain.Flight) error {
			return applyUpdate(current, input)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	log.Info().Int64("flight_id", id).Msg("flight updated")
	return flight, nil
}

func applyUpdate(current *domain.Flight, input FlightInput) error {
	if input.AvailableSeats == nil {
		seats := current.AvailableSeats
		input.AvailableSeats = &seats
	}
	if input.FareClassPrices == nil {
		input.FareClassPrices = make(map[domain.FareClass]float64, len(current.FareClassPrices))
		input.AvailableSeatsPerClass = make(map[domain.FareClass]int, len(current.FareClassPrices))
		for _, p := range current.FareClassPrices {
			input.FareClassPrices[p.FareClass] = p.BasePrice
			input.AvailableSeatsPerClass[p.FareClass] = p.AvailableSeats
		}
	}
	return applyInput(current, input)
}

// applyInput validates input and copies it onto flight. It fails before any
// storage call.
func applyInput(flight *domain.Flight, input FlightInput) error {
	flight.FlightNumber = strings.ToUpper(strings.TrimSpace(input.FlightNumber))
	flight.Airline = input.Airline
	flight.FromAirport = strings.ToUpper(input.FromAirport)
	flight.ToAirport = strings.ToUpper(input.ToAirport)
	flight.DepartureTime = input.DepartureTime
	flight.ArrivalTime = input.ArrivalTime
	flight.TotalCapacity = input.TotalCapacity
	if input.Status != "" {
		st, err := domain.ParseFlightStatus(input.Status)
		if err != nil {
			return err
		}
		flight.Status = st
	}
	if input.AvailableSeats != nil {
		flight.AvailableSeats = *input.AvailableSeats
	} else {
		flight.AvailableSeats = input.TotalCapacity
	}
	if len(input.FareClassPrices) > 0 {
		if err := flight.SetFareClasses(input.FareClassPrices, input.AvailableSeatsPerClass); err != nil {
			return err
		}
	} else {
		flight.FareClassPrices = nil
	}
	return flight.Validate()
}

func (s *FlightService) SetFareClassPrice(ctx context.Context, flightID int64, class domain.FareClass, price float64, seats int) (*domain.Flight, error) {
	if price <= 0 || seats < 0 {
		return nil, fmt.Errorf("%w: price must be positive and seats not negative", domain.ErrInvalidRequest)
	}
	var flight *domain.Flight
	err := s.withFlightLock(ctx, flightID, func() error {
		var err error
		flight, err = s.repo.SetFareClassPrice(ctx, flightID, domain.FareClassPrice{
			FareClass:      class,
			BasePrice:      price,
			CurrentPrice:   price,
			AvailableSeats: seats,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return flight, nil
}

func (s *FlightService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// AvailableSeats returns the pool for class, or the flight-wide counter when
// class is empty.
func (s *FlightService) AvailableSeats(ctx context.Context, flightID int64, class domain.FareClass) (int, error) {
	flight, err := s.repo.GetByID(ctx, flightID)
	if err != nil {
		return 0, err
	}
	if class == "" {
		return flight.AvailableSeats, nil
	}
	return flight.AvailableSeatsFor(class)
}

func (s *FlightService) QuotePrice(ctx context.Context, flightID int64, class domain.FareClass, passengers int) (*pricing.Quote, error) {
	flight, err := s.repo.GetByID(ctx, flightID)
	if err != nil {
		return nil, err
	}
	quote, err := s.pricing.Quote(flight, class, passengers)
	if err != nil {
		return nil, err
	}
	metrics.PriceQuotes.WithLabelValues(string(class)).Inc()
	return quote, nil
}

// withFlightLock runs fn under the flight's Redis lock when one is
// configured. A held lock is a conflict; an unreachable Redis falls back to
// the row lock storage takes.
func (s *FlightService) withFlightLock(ctx context.Context, flightID int64, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	token, ok, err := s.locker.AcquireFlightLock(ctx, flightID, s.lockTTL)
	if err != nil {
		log.Warn().Err(err).Int64("flight_id", flightID).Msg("flight lock unavailable")
		return fn()
	}
	if !ok {
		return fmt.Errorf("%w: flight %d is locked", domain.ErrConcurrencyConflict, flightID)
	}
	defer func() {
		if err := s.locker.ReleaseFlightLock(context.WithoutCancel(ctx), flightID, token); err != nil {
			log.Warn().Err(err).Int64("flight_id", flightID).Msg("release flight lock")
		}
	}()
	return fn()
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		log.Warn().Err(err).Msg("invalidate flights cache")
	}
}

var _ FlightUseCase = (*FlightService)(nil)
