package kafka

import (
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingDeleted   = "booking_deleted"
	EventPaymentRecorded  = "payment_recorded"
	EventPaymentUpdated   = "payment_updated"
)

type BookingEvent struct {
	Type        string    `json:"type"`
	BookingID   int64     `json:"booking_id"`
	BookingCode string    `json:"booking_code"`
	FlightID    int64     `json:"flight_id"`
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	Seats       int       `json:"seats"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b *domain.Booking) BookingEvent {
	ev := BookingEvent{
		Type:        eventType,
		BookingID:   b.ID,
		BookingCode: b.BookingCode,
		FlightID:    b.FlightID,
		UserID:      b.UserID,
		Seats:       b.SeatsHeld,
		Status:      string(b.Status),
		TotalAmount: b.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
	if b.User != nil {
		ev.Email = b.User.Email
	}
	return ev
}

// PaymentEvent is both what this service publishes about payments and what
// the payment gateway sends back on the payment events topic.
type PaymentEvent struct {
	Type             string    `json:"type"`
	PaymentID        int64     `json:"payment_id,omitempty"`
	PaymentReference string    `json:"payment_reference"`
	BookingID        int64     `json:"booking_id,omitempty"`
	Amount           float64   `json:"amount,omitempty"`
	Status           string    `json:"status"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func NewPaymentEvent(eventType string, p *domain.Payment) PaymentEvent {
	return PaymentEvent{
		Type:             eventType,
		PaymentID:        p.ID,
		PaymentReference: p.PaymentReference,
		BookingID:        p.BookingID,
		Amount:           p.Amount,
		Status:           string(p.Status),
		OccurredAt:       time.Now().UTC(),
	}
}
