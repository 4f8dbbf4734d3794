package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCodeTaken means a generated booking code or payment reference collided
// on insert; callers draw a new one.
var ErrCodeTaken = errors.New("generated code already taken")

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateCheckViolation       = "23514"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"

	// seat mutations wait at most this long for a flight row lock
	lockTimeout = "2s"
)

var generatedCodeConstraints = map[string]bool{
	"bookings_booking_code_key":      true,
	"payments_payment_reference_key": true,
}

// withTx runs fn in one transaction and commits when fn returns nil.
func withTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '"+lockTimeout+"'"); err != nil {
		return mapError(err)
	}
	if err := fn(tx); err != nil {
		return mapError(err)
	}
	return mapError(tx.Commit(ctx))
}

// mapError translates driver errors into domain errors. Domain errors pass
// through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, pgErr.Message)
	case sqlStateUniqueViolation:
		if generatedCodeConstraints[pgErr.ConstraintName] {
			return fmt.Errorf("%w: %s", ErrCodeTaken, pgErr.ConstraintName)
		}
		return fmt.Errorf("%w: duplicate value violates %s", domain.ErrInvalidRequest, pgErr.ConstraintName)
	case sqlStateCheckViolation:
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, pgErr.ConstraintName)
	case sqlStateForeignKeyViolation:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, pgErr.ConstraintName)
	}
	return err
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page clamps list paging: a non-positive limit takes the default, a larger
// one is capped, a negative offset starts at zero.
func Page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
