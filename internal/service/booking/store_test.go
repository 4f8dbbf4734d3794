package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/repository"
)

// memStore keeps flights and bookings in memory and applies the same
// conditional decrement the database does, under one mutex.
type memStore struct {
	mu       sync.Mutex
	flights  map[int64]*domain.Flight
	bookings map[int64]*domain.Booking
	users    map[int64]*domain.User
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		flights:  map[int64]*domain.Flight{},
		bookings: map[int64]*domain.Booking{},
		users:    map[int64]*domain.User{1: {ID: 1, Email: "user@example.com", Role: domain.RoleUser}},
	}
}

func (s *memStore) addFlight(f *domain.Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flights[f.ID] = f
}

func (s *memStore) seats(flightID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flights[flightID].AvailableSeats
}

type memBookings struct{ *memStore }

func (r memBookings) ExistsByCode(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.BookingCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r memBookings) Create(_ context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bookings {
		if existing.BookingCode == b.BookingCode {
			return fmt.Errorf("%w: %s", repository.ErrCodeTaken, b.BookingCode)
		}
	}
	f, ok := r.flights[b.FlightID]
	if !ok {
		return domain.ErrNotFound
	}
	if f.AvailableSeats < b.SeatsHeld {
		return domain.ErrInsufficientInventory
	}
	if b.FareClass != "" {
		p, err := f.FareClassPrice(b.FareClass)
		if err != nil {
			return domain.ErrInvalidRequest
		}
		if p.AvailableSeats < b.SeatsHeld {
			return domain.ErrInsufficientInventory
		}
		p.AvailableSeats -= b.SeatsHeld
	}
	f.AvailableSeats -= b.SeatsHeld
	r.nextID++
	b.ID = r.nextID
	stored := *b
	r.bookings[b.ID] = &stored
	return nil
}

func (r memBookings) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (r memBookings) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	r.mu.Lock()
	var id int64
	for _, b := range r.bookings {
		if b.BookingCode == code {
			id = b.ID
		}
	}
	r.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r memBookings) ListByUser(_ context.Context, userID int64, _, _ int) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r memBookings) ListByFlight(_ context.Context, flightID int64, _, _ int) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if b.FlightID == flightID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r memBookings) Confirm(ctx context.Context, id int64) (*domain.Booking, error) {
	r.mu.Lock()
	b, ok := r.bookings[id]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if b.Status == domain.BookingStatusCancelled {
		r.mu.Unlock()
		return nil, domain.ErrInvalidTransition
	}
	b.Status = domain.BookingStatusConfirmed
	r.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r memBookings) Cancel(ctx context.Context, id int64) (*domain.Booking, bool, error) {
	r.mu.Lock()
	b, ok := r.bookings[id]
	if !ok {
		r.mu.Unlock()
		return nil, false, domain.ErrNotFound
	}
	released := false
	if b.Status.Active() {
		b.Status = domain.BookingStatusCancelled
		f := r.flights[b.FlightID]
		f.AvailableSeats = min(f.TotalCapacity, f.AvailableSeats+b.SeatsHeld)
		if b.FareClass != "" {
			if p, err := f.FareClassPrice(b.FareClass); err == nil {
				p.AvailableSeats += b.SeatsHeld
			}
		}
		released = true
	}
	r.mu.Unlock()
	out, err := r.GetByID(ctx, id)
	return out, released, err
}

func (r memBookings) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

// blindBookings never sees a code as taken before the insert, as when
// another writer claims it between the lookup and the insert.
type blindBookings struct{ memBookings }

func (blindBookings) ExistsByCode(context.Context, string) (bool, error) { return false, nil }

type memFlights struct{ *memStore }

func (r memFlights) List(context.Context) ([]domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Flight
	for _, f := range r.flights {
		out = append(out, *f)
	}
	return out, nil
}

func (r memFlights) GetByID(_ context.Context, id int64) (*domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[id]
	if !ok {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	cp := *f
	cp.FareClassPrices = append([]domain.FareClassPrice(nil), f.FareClassPrices...)
	return &cp, nil
}

func (r memFlights) GetByNumber(context.Context, string) (*domain.Flight, error) {
	return nil, domain.ErrNotFound
}

func (r memFlights) Create(context.Context, *domain.Flight) error { return nil }

func (r memFlights) Search(ctx context.Context, _ domain.FlightFilter, _, _ int) ([]domain.Flight, error) {
	return r.List(ctx)
}

func (r memFlights) Update(context.Context, int64, func(*domain.Flight) error) (*domain.Flight, error) {
	return nil, errors.New("not supported")
}

func (r memFlights) SetFareClassPrice(context.Context, int64, domain.FareClassPrice) (*domain.Flight, error) {
	return nil, domain.ErrNotFound
}

func (r memFlights) Delete(context.Context, int64) error { return nil }

type memUsers struct{ *memStore }

func (r memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}
