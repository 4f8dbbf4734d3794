package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	Search(ctx context.Context, filter domain.FlightFilter, limit, offset int) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetByNumber(ctx context.Context, number string) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	Update(ctx context.Context, id int64, apply func(*domain.Flight) error) (*domain.Flight, error)
	SetFareClassPrice(ctx context.Context, flightID int64, price domain.FareClassPrice) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, flight_number, airline, from_airport, to_airport, departure_time, arrival_time, status, total_capacity, available_seats, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlight(row rowScanner) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.Airline, &f.FromAirport, &f.ToAirport, &f.DepartureTime, &f.ArrivalTime, &f.Status, &f.TotalCapacity, &f.AvailableSeats, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadFareClasses(ctx context.Context, q querier, flights ...*domain.Flight) error {
	if len(flights) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(flights))
	byID := make(map[int64]*domain.Flight, len(flights))
	for _, f := range flights {
		ids = append(ids, f.ID)
		byID[f.ID] = f
		f.FareClassPrices = nil
	}

	rows, err := q.Query(ctx, `SELECT id, flight_id, fare_class, base_price, current_price, available_seats FROM fare_class_prices WHERE flight_id = ANY($1) ORDER BY flight_id, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.FareClassPrice
		if err := rows.Scan(&p.ID, &p.FlightID, &p.FareClass, &p.BasePrice, &p.CurrentPrice, &p.AvailableSeats); err != nil {
			return err
		}
		if f, ok := byID[p.FlightID]; ok {
			f.FareClassPrices = append(f.FareClassPrices, p)
		}
	}
	return rows.Err()
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	return r.query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
}

// Search returns one page of flights matching filter, earliest departure first.
func (r *PGFlightRepository) Search(ctx context.Context, filter domain.FlightFilter, limit, offset int) ([]domain.Flight, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		p := arg("%" + q + "%")
		where = append(where, fmt.Sprintf("(flight_number ILIKE %[1]s OR airline ILIKE %[1]s OR from_airport ILIKE %[1]s OR to_airport ILIKE %[1]s)", p))
	}
	if filter.From != "" {
		where = append(where, "from_airport = "+arg(strings.ToUpper(filter.From)))
	}
	if filter.To != "" {
		where = append(where, "to_airport = "+arg(strings.ToUpper(filter.To)))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if !filter.DepartFrom.IsZero() {
		where = append(where, "departure_time >= "+arg(filter.DepartFrom))
	}
	if !filter.DepartTo.IsZero() {
		where = append(where, "departure_time < "+arg(filter.DepartTo))
	}

	sql := `SELECT ` + flightColumns + ` FROM flights`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY departure_time, id LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	return r.query(ctx, sql, args...)
}

func (r *PGFlightRepository) query(ctx context.Context, sql string, args ...any) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, mapError(err)
		}
		flights = append(flights, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	ptrs := make([]*domain.Flight, len(flights))
	for i := range flights {
		ptrs[i] = &flights[i]
	}
	if err := loadFareClasses(ctx, r.db, ptrs...); err != nil {
		return nil, mapError(err)
	}
	return flights, nil
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("flight %d: %w", id, mapError(err))
	}
	if err := loadFareClasses(ctx, r.db, f); err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

func (r *PGFlightRepository) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE flight_number=$1`, number))
	if err != nil {
		return nil, fmt.Errorf("flight %s: %w", number, mapError(err))
	}
	if err := loadFareClasses(ctx, r.db, f); err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO flights (flight_number, airline, from_airport, to_airport, departure_time, arrival_time, status, total_capacity, available_seats)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`,
			flight.FlightNumber, flight.Airline, flight.FromAirport, flight.ToAirport, flight.DepartureTime, flight.ArrivalTime, flight.Status, flight.TotalCapacity, flight.AvailableSeats).
			Scan(&flight.ID, &flight.CreatedAt, &flight.UpdatedAt); err != nil {
			return err
		}
		return insertFareClasses(ctx, tx, flight)
	})
}

func insertFareClasses(ctx context.Context, tx pgx.Tx, flight *domain.Flight) error {
	for i := range flight.FareClassPrices {
		p := &flight.FareClassPrices[i]
		p.FlightID = flight.ID
		if err := tx.QueryRow(ctx, `INSERT INTO fare_class_prices (flight_id, fare_class, base_price, current_price, available_seats)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			flight.ID, p.FareClass, p.BasePrice, p.CurrentPrice, p.AvailableSeats).Scan(&p.ID); err != nil {
			return err
		}
	}
	return nil
}

// Update locks the flight row, loads the flight as it stands under the lock
// and hands it to apply. Seat counters apply leaves alone keep the values
// bookings committed before the lock was taken.
func (r *PGFlightRepository) Update(ctx context.Context, id int64, apply func(*domain.Flight) error) (*domain.Flight, error) {
	var flight *domain.Flight
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		f, err := scanFlight(tx.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := loadFareClasses(ctx, tx, f); err != nil {
			return err
		}
		if err := apply(f); err != nil {
			return err
		}
		f.ID = id
		if err := f.Validate(); err != nil {
			return err
		}

		if err := tx.QueryRow(ctx, `UPDATE flights SET flight_number=$2, airline=$3, from_airport=$4, to_airport=$5, departure_time=$6, arrival_time=$7,
			status=$8, total_capacity=$9, available_seats=$10, updated_at=now()
			WHERE id=$1 RETURNING created_at, updated_at`,
			id, f.FlightNumber, f.Airline, f.FromAirport, f.ToAirport, f.DepartureTime, f.ArrivalTime,
			f.Status, f.TotalCapacity, f.AvailableSeats).Scan(&f.CreatedAt, &f.UpdatedAt); err != nil {
			return err
		}

		kept := make([]string, 0, len(f.FareClassPrices))
		for _, p := range f.FareClassPrices {
			kept = append(kept, string(p.FareClass))
			if _, err := tx.Exec(ctx, `INSERT INTO fare_class_prices (flight_id, fare_class, base_price, current_price, available_seats)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (flight_id, fare_class) DO UPDATE SET base_price=EXCLUDED.base_price, current_price=EXCLUDED.current_price, available_seats=EXCLUDED.available_seats`,
				id, p.FareClass, p.BasePrice, p.CurrentPrice, p.AvailableSeats); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fare_class_prices WHERE flight_id=$1 AND NOT (fare_class = ANY($2))`, id, kept); err != nil {
			return err
		}
		if err := loadFareClasses(ctx, tx, f); err != nil {
			return err
		}
		flight = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flight, nil
}

// SetFareClassPrice inserts or overwrites one fare class pool and returns the
// refreshed flight. The per-class sum may not exceed total capacity.
func (r *PGFlightRepository) SetFareClassPrice(ctx context.Context, flightID int64, price domain.FareClassPrice) (*domain.Flight, error) {
	var flight *domain.Flight
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		f, err := scanFlight(tx.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1 FOR UPDATE`, flightID))
		if err != nil {
			return err
		}
		if err := loadFareClasses(ctx, tx, f); err != nil {
			return err
		}
		if err := f.AddFareClassPrice(price.FareClass, price.BasePrice, price.AvailableSeats); err != nil {
			return err
		}
		if err := f.Validate(); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO fare_class_prices (flight_id, fare_class, base_price, current_price, available_seats)
			VALUES ($1, $2, $3, $3, $4)
			ON CONFLICT (flight_id, fare_class) DO UPDATE SET base_price=EXCLUDED.base_price, current_price=EXCLUDED.current_price, available_seats=EXCLUDED.available_seats`,
			flightID, price.FareClass, price.BasePrice, price.AvailableSeats); err != nil {
			return err
		}
		if err := loadFareClasses(ctx, tx, f); err != nil {
			return err
		}
		flight = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flight, nil
}

func (r *PGFlightRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM flights WHERE id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

var _ FlightRepository = (*PGFlightRepository)(nil)
