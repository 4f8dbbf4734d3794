package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/airticketing/internal/kafka"
	"github.com/Domenick1991/airticketing/internal/logging"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender turns booking events into customer notifications. Delivery is a
// structured log line until an SMTP relay is configured.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	msg, ok := Compose(event)
	if !ok {
		return nil
	}
	logging.Ctx(ctx).Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("booking_code", event.BookingCode).
		Msg("notification sent")
	return nil
}

// Compose renders the notification for an event. ok is false for events that
// do not notify anyone or that have no recipient.
func Compose(event kafka.BookingEvent) (Message, bool) {
	if event.Email == "" {
		return Message{}, false
	}
	var subject, body string
	switch event.Type {
	case kafka.EventBookingCreated:
		subject = fmt.Sprintf("Booking %s received", event.BookingCode)
		body = fmt.Sprintf("We are holding %d seat(s) on flight %d. Complete payment to confirm.", event.Seats, event.FlightID)
	case kafka.EventBookingConfirmed:
		subject = fmt.Sprintf("Booking %s confirmed", event.BookingCode)
		body = fmt.Sprintf("Your payment was received. %d seat(s) on flight %d are confirmed.", event.Seats, event.FlightID)
	case kafka.EventBookingCancelled:
		subject = fmt.Sprintf("Booking %s cancelled", event.BookingCode)
		body = fmt.Sprintf("Your booking on flight %d was cancelled.", event.FlightID)
	default:
		return Message{}, false
	}
	return Message{To: event.Email, Subject: subject, Body: body}, true
}
