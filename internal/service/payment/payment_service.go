package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/airticketing/internal/codes"
	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/kafka"
	"github.com/Domenick1991/airticketing/internal/logging"
	"github.com/Domenick1991/airticketing/internal/metrics"
	"github.com/Domenick1991/airticketing/internal/repository"
)

type PaymentUseCase interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Payment, error)
	UpdateStatusByReference(ctx context.Context, reference string, status domain.PaymentStatus) (*domain.Payment, error)
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	GetByReference(ctx context.Context, reference string) (*domain.Payment, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error)
	ListByStatus(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]domain.Payment, error)
	Delete(ctx context.Context, id int64) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type CreatePaymentInput struct {
	BookingID int64
	Amount    float64
	Method    domain.PaymentMethod
	Status    domain.PaymentStatus
}

type PaymentService struct {
	payments           repository.PaymentRepository
	bookings           repository.BookingRepository
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	codeAttempts       int
	newReference       codes.Generator
}

type PaymentServiceOption func(*PaymentService)

func WithNotificationsTopic(topic string) PaymentServiceOption {
	return func(s *PaymentService) {
		s.notificationsTopic = topic
	}
}

func WithCodeAttempts(n int) PaymentServiceOption {
	return func(s *PaymentService) {
		s.codeAttempts = n
	}
}

func withReferenceGenerator(gen codes.Generator) PaymentServiceOption {
	return func(s *PaymentService) {
		s.newReference = gen
	}
}

func NewPaymentService(
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	producer Producer,
	bookingTopic string,
	opts ...PaymentServiceOption,
) *PaymentService {
	s := &PaymentService{
		payments:     payments,
		bookings:     bookings,
		producer:     producer,
		bookingTopic: bookingTopic,
		codeAttempts: codes.DefaultMaxAttempts,
		newReference: codes.PaymentReference,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePayment records a payment for a booking. A COMPLETED payment confirms
// the booking in the same transaction.
func (s *PaymentService) CreatePayment(ctx context.Context, input CreatePaymentInput) (*domain.Payment, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidRequest)
	}
	if input.Method == "" {
		return nil, fmt.Errorf("%w: payment method is required", domain.ErrInvalidRequest)
	}
	if input.Status == "" {
		input.Status = domain.PaymentStatusPending
	}

	booking, err := s.bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == domain.BookingStatusCancelled {
		return nil, fmt.Errorf("%w: booking %s is cancelled", domain.ErrInvalidTransition, booking.BookingCode)
	}

	var payment *domain.Payment
	_, err = codes.Claim(ctx, s.newReference, s.payments.ExistsByReference, s.codeAttempts, func(reference string) error {
		candidate := &domain.Payment{
			BookingID:        input.BookingID,
			Amount:           input.Amount,
			Method:           input.Method,
			Status:           input.Status,
			PaymentReference: reference,
		}
		if err := s.payments.Create(ctx, candidate); err != nil {
			return err
		}
		payment = candidate
		return nil
	}, func(err error) bool {
		return errors.Is(err, repository.ErrCodeTaken)
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentsByStatus.WithLabelValues(string(payment.Status)).Inc()
	s.publishPayment(ctx, kafka.EventPaymentRecorded, payment)
	if payment.Status == domain.PaymentStatusCompleted && booking.Status != domain.BookingStatusConfirmed {
		s.bookingConfirmed(ctx, booking.ID)
	}
	logging.Ctx(ctx).Info().
		Int64("booking_id", payment.BookingID).
		Str("payment_reference", payment.PaymentReference).
		Str("status", string(payment.Status)).
		Msg("payment recorded")
	return payment, nil
}

// UpdatePaymentStatus is a no-op when the status does not change. Moving to
// COMPLETED confirms the booking; leaving COMPLETED leaves the booking as is.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Payment, error) {
	payment, changed, err := s.payments.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if !changed {
		return payment, nil
	}

	metrics.PaymentsByStatus.WithLabelValues(string(status)).Inc()
	s.publishPayment(ctx, kafka.EventPaymentUpdated, payment)
	if status == domain.PaymentStatusCompleted {
		s.bookingConfirmed(ctx, payment.BookingID)
	}
	return payment, nil
}

func (s *PaymentService) UpdateStatusByReference(ctx context.Context, reference string, status domain.PaymentStatus) (*domain.Payment, error) {
	current, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.UpdatePaymentStatus(ctx, current.ID, status)
}

func (s *PaymentService) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *PaymentService) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	return s.payments.GetByReference(ctx, reference)
}

func (s *PaymentService) ListByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	return s.payments.ListByBooking(ctx, bookingID)
}

func (s *PaymentService) ListByStatus(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]domain.Payment, error) {
	limit, offset = repository.Page(limit, offset)
	return s.payments.ListByStatus(ctx, status, limit, offset)
}

func (s *PaymentService) Delete(ctx context.Context, id int64) error {
	return s.payments.Delete(ctx, id)
}

func (s *PaymentService) publishPayment(ctx context.Context, eventType string, payment *domain.Payment) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, payment.PaymentReference, kafka.NewPaymentEvent(eventType, payment)); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event", eventType).Str("payment_reference", payment.PaymentReference).Msg("publish payment event")
	}
}

// bookingConfirmed announces a confirmation that storage already committed.
func (s *PaymentService) bookingConfirmed(ctx context.Context, bookingID int64) {
	metrics.BookingTransitions.WithLabelValues(string(domain.BookingStatusConfirmed)).Inc()
	if s.producer == nil {
		return
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("booking_id", bookingID).Msg("load confirmed booking")
		return
	}
	event := kafka.NewBookingEvent(kafka.EventBookingConfirmed, booking)
	for _, topic := range []string{s.bookingTopic, s.notificationsTopic} {
		if topic == "" {
			continue
		}
		if err := s.producer.Publish(ctx, topic, booking.BookingCode, event); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Str("booking_code", booking.BookingCode).Msg("publish booking event")
		}
	}
}

var _ PaymentUseCase = (*PaymentService)(nil)
