package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByCode(ctx context.Context, code string) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error)
	ListByFlight(ctx context.Context, flightID int64, limit, offset int) ([]domain.Booking, error)
	Confirm(ctx context.Context, id int64) (*domain.Booking, error)
	Cancel(ctx context.Context, id int64) (*domain.Booking, bool, error)
	Delete(ctx context.Context, id int64) error
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, booking_code, flight_id, user_id, COALESCE(fare_class, ''), seats_held, total_amount, status, booking_date, updated_at`

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.BookingCode, &b.FlightID, &b.UserID, &b.FareClass, &b.SeatsHeld, &b.TotalAmount, &b.Status, &b.BookingDate, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_code=$1)`, code).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// Create takes the booking's seats out of the flight (and its fare class pool
// when one is named) and stores the booking with its passengers, all in one
// transaction. The conditional UPDATE holds the flight row lock until commit,
// so concurrent bookings on the same flight serialize on it.
func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		var remaining int
		err := tx.QueryRow(ctx, `UPDATE flights SET available_seats = available_seats - $2, updated_at = now()
			WHERE id=$1 AND available_seats >= $2 RETURNING available_seats`, booking.FlightID, booking.SeatsHeld).Scan(&remaining)
		if errors.Is(err, pgx.ErrNoRows) {
			return flightInventoryError(ctx, tx, booking.FlightID)
		}
		if err != nil {
			return err
		}

		if booking.FareClass != "" {
			cmd, err := tx.Exec(ctx, `UPDATE fare_class_prices SET available_seats = available_seats - $3
				WHERE flight_id=$1 AND fare_class=$2 AND available_seats >= $3`, booking.FlightID, booking.FareClass, booking.SeatsHeld)
			if err != nil {
				return err
			}
			if cmd.RowsAffected() == 0 {
				return fareClassInventoryError(ctx, tx, booking.FlightID, booking.FareClass)
			}
		}

		if err := tx.QueryRow(ctx, `INSERT INTO bookings (booking_code, flight_id, user_id, fare_class, seats_held, total_amount, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, booking_date, updated_at`,
			booking.BookingCode, booking.FlightID, booking.UserID, nullString(string(booking.FareClass)), booking.SeatsHeld, booking.TotalAmount, booking.Status).
			Scan(&booking.ID, &booking.BookingDate, &booking.UpdatedAt); err != nil {
			return err
		}

		for i := range booking.Passengers {
			p := &booking.Passengers[i]
			p.BookingID = booking.ID
			if err := tx.QueryRow(ctx, `INSERT INTO passengers (booking_id, first_name, last_name, passport_number, date_of_birth, gender)
				VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
				booking.ID, p.FirstName, p.LastName, p.PassportNumber, nullDate(p.DateOfBirth), p.Gender).Scan(&p.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func flightInventoryError(ctx context.Context, tx pgx.Tx, flightID int64) error {
	var available int
	err := tx.QueryRow(ctx, `SELECT available_seats FROM flights WHERE id=$1`, flightID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("flight %d: %w", flightID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: flight %d has %d seats left", domain.ErrInsufficientInventory, flightID, available)
}

func fareClassInventoryError(ctx context.Context, tx pgx.Tx, flightID int64, class domain.FareClass) error {
	var available int
	err := tx.QueryRow(ctx, `SELECT available_seats FROM fare_class_prices WHERE flight_id=$1 AND fare_class=$2`, flightID, class).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: fare class %s is not offered on flight %d", domain.ErrInvalidRequest, class, flightID)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s has %d seats left on flight %d", domain.ErrInsufficientInventory, class, available, flightID)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", id, mapError(err))
	}
	if err := r.hydrate(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_code=$1`, code))
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", code, mapError(err))
	}
	if err := r.hydrate(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// hydrate attaches flight, user, passengers and payment.
func (r *PGBookingRepository) hydrate(ctx context.Context, b *domain.Booking) error {
	flight, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, b.FlightID))
	if err != nil {
		return mapError(err)
	}
	if err := loadFareClasses(ctx, r.db, flight); err != nil {
		return mapError(err)
	}
	b.Flight = flight

	var u domain.User
	if err := r.db.QueryRow(ctx, `SELECT id, email, first_name, last_name, role FROM users WHERE id=$1`, b.UserID).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role); err != nil {
		return mapError(err)
	}
	b.User = &u

	list := []*domain.Booking{b}
	if err := loadPassengers(ctx, r.db, list); err != nil {
		return mapError(err)
	}
	return mapError(loadPayments(ctx, r.db, list))
}

func loadPassengers(ctx context.Context, q querier, bookings []*domain.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(bookings))
	byID := make(map[int64]*domain.Booking, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
		byID[b.ID] = b
	}
	rows, err := q.Query(ctx, `SELECT id, booking_id, first_name, last_name, passport_number, date_of_birth, gender
		FROM passengers WHERE booking_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Passenger
		var dob *time.Time
		if err := rows.Scan(&p.ID, &p.BookingID, &p.FirstName, &p.LastName, &p.PassportNumber, &dob, &p.Gender); err != nil {
			return err
		}
		if dob != nil {
			p.DateOfBirth = *dob
		}
		if b, ok := byID[p.BookingID]; ok {
			b.Passengers = append(b.Passengers, p)
		}
	}
	return rows.Err()
}

func loadPayments(ctx context.Context, q querier, bookings []*domain.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(bookings))
	byID := make(map[int64]*domain.Booking, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
		byID[b.ID] = b
	}
	rows, err := q.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return err
		}
		if b, ok := byID[p.BookingID]; ok {
			b.Payment = p
		}
	}
	return rows.Err()
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	return r.list(ctx, `user_id=$1`, userID, limit, offset)
}

func (r *PGBookingRepository) ListByFlight(ctx context.Context, flightID int64, limit, offset int) ([]domain.Booking, error) {
	return r.list(ctx, `flight_id=$1`, flightID, limit, offset)
}

func (r *PGBookingRepository) list(ctx context.Context, where string, arg any, limit, offset int) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+where+` ORDER BY booking_date DESC, id DESC LIMIT $2 OFFSET $3`, arg, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	ptrs := make([]*domain.Booking, len(bookings))
	for i := range bookings {
		ptrs[i] = &bookings[i]
	}
	if err := loadPassengers(ctx, r.db, ptrs); err != nil {
		return nil, mapError(err)
	}
	if err := loadPayments(ctx, r.db, ptrs); err != nil {
		return nil, mapError(err)
	}
	return bookings, nil
}

// confirmBooking moves a booking to CONFIRMED inside tx. Confirming a
// confirmed booking is a no-op; a cancelled booking cannot be confirmed.
func confirmBooking(ctx context.Context, tx pgx.Tx, id int64) error {
	var status domain.BookingStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1 FOR UPDATE`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
		}
		return err
	}
	if status == domain.BookingStatusConfirmed {
		return nil
	}
	if !status.CanTransitionTo(domain.BookingStatusConfirmed) {
		return fmt.Errorf("%w: booking %d is %s", domain.ErrInvalidTransition, id, status)
	}
	_, err := tx.Exec(ctx, `UPDATE bookings SET status=$2, updated_at=now() WHERE id=$1`, id, domain.BookingStatusConfirmed)
	return err
}

func (r *PGBookingRepository) Confirm(ctx context.Context, id int64) (*domain.Booking, error) {
	if err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		return confirmBooking(ctx, tx, id)
	}); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Cancel flips an active booking to CANCELLED and returns its seats to the
// flight. The status check-and-set makes a second cancel a no-op; the bool
// reports whether this call released seats.
func (r *PGBookingRepository) Cancel(ctx context.Context, id int64) (*domain.Booking, bool, error) {
	released := false
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `UPDATE bookings SET status=$2, updated_at=now()
			WHERE id=$1 AND status = ANY($3)
			RETURNING `+bookingColumns, id, domain.BookingStatusCancelled,
			[]string{string(domain.BookingStatusPending), string(domain.BookingStatusConfirmed)}))
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id=$1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
			}
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE flights SET available_seats = LEAST(total_capacity, available_seats + $2), updated_at=now() WHERE id=$1`,
			b.FlightID, b.SeatsHeld); err != nil {
			return err
		}
		if b.FareClass != "" {
			if _, err := tx.Exec(ctx, `UPDATE fare_class_prices SET available_seats = available_seats + $3 WHERE flight_id=$1 AND fare_class=$2`,
				b.FlightID, b.FareClass, b.SeatsHeld); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE payments SET status=$2, updated_at=now() WHERE booking_id=$1 AND status=$3`,
			id, domain.PaymentStatusRefunded, domain.PaymentStatusCompleted); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return b, released, nil
}

// Delete removes the booking outright. Seats are not returned.
func (r *PGBookingRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ BookingRepository = (*PGBookingRepository)(nil)
