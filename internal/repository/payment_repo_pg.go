package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository interface {
	ExistsByReference(ctx context.Context, reference string) (bool, error)
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	GetByReference(ctx context.Context, reference string) (*domain.Payment, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error)
	ListByStatus(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]domain.Payment, error)
	UpdateStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Payment, bool, error)
	Delete(ctx context.Context, id int64) error
}

type PGPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) PaymentRepository {
	return &PGPaymentRepository{db: db}
}

const paymentColumns = `id, booking_id, amount, method, status, payment_reference, payment_date, updated_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	if err := row.Scan(&p.ID, &p.BookingID, &p.Amount, &p.Method, &p.Status, &p.PaymentReference, &p.PaymentDate, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGPaymentRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE payment_reference=$1)`, reference).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// Create stores the payment and, when it is already COMPLETED, confirms the
// booking in the same transaction.
func (r *PGPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		var status domain.BookingStatus
		if err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1 FOR UPDATE`, payment.BookingID).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("booking %d: %w", payment.BookingID, domain.ErrNotFound)
			}
			return err
		}

		if err := tx.QueryRow(ctx, `INSERT INTO payments (booking_id, amount, method, status, payment_reference)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, payment_date, updated_at`,
			payment.BookingID, payment.Amount, payment.Method, payment.Status, payment.PaymentReference).
			Scan(&payment.ID, &payment.PaymentDate, &payment.UpdatedAt); err != nil {
			return err
		}

		if payment.Status == domain.PaymentStatusCompleted {
			return confirmBooking(ctx, tx, payment.BookingID)
		}
		return nil
	})
}

func (r *PGPaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("payment %d: %w", id, mapError(err))
	}
	return p, nil
}

func (r *PGPaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payment_reference=$1`, reference))
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", reference, mapError(err))
	}
	return p, nil
}

func (r *PGPaymentRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id=$1 ORDER BY id`, bookingID)
}

func (r *PGPaymentRepository) ListByStatus(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments WHERE status=$1 ORDER BY payment_date DESC, id DESC LIMIT $2 OFFSET $3`, status, limit, offset)
}

func (r *PGPaymentRepository) list(ctx context.Context, sql string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapError(err)
		}
		payments = append(payments, *p)
	}
	return payments, mapError(rows.Err())
}

// UpdateStatus changes the payment status; moving to COMPLETED confirms the
// booking in the same transaction. The bool is false when the status was
// already the requested one.
func (r *PGPaymentRepository) UpdateStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Payment, bool, error) {
	var (
		payment *domain.Payment
		changed bool
	)
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		p, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("payment %d: %w", id, domain.ErrNotFound)
			}
			return err
		}
		payment = p
		if p.Status == status {
			return nil
		}

		if status == domain.PaymentStatusCompleted {
			if err := confirmBooking(ctx, tx, p.BookingID); err != nil {
				return err
			}
		}
		if err := tx.QueryRow(ctx, `UPDATE payments SET status=$2, updated_at=now() WHERE id=$1 RETURNING updated_at`, id, status).
			Scan(&p.UpdatedAt); err != nil {
			return err
		}
		p.Status = status
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payment, changed, nil
}

func (r *PGPaymentRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM payments WHERE id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("payment %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
