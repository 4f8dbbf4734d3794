package domain

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// bookingTransitions lists the legal target states for every source state.
// CANCELLED is terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled},
	BookingStatusCancelled: nil,
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := bookingTransitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown booking status %q", ErrInvalidRequest, s)
	}
	return st, nil
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the booking still holds seats.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

type Passenger struct {
	ID             int64
	BookingID      int64
	FirstName      string
	LastName       string
	PassportNumber string
	DateOfBirth    time.Time
	Gender         Gender
}

type Booking struct {
	ID          int64
	BookingCode string
	FlightID    int64
	UserID      int64
	FareClass   FareClass
	SeatsHeld   int
	TotalAmount float64
	Status      BookingStatus
	BookingDate time.Time
	UpdatedAt   time.Time

	Flight     *Flight
	User       *User
	Passengers []Passenger
	Payment    *Payment
}

// SeatCount is the number of seats a booking request consumes; an empty
// passenger list still takes one seat.
func SeatCount(passengers []Passenger) int {
	if len(passengers) == 0 {
		return 1
	}
	return len(passengers)
}

// ValidatePassengers rejects incomplete passengers and passports repeated
// within one request.
func ValidatePassengers(passengers []Passenger) error {
	seen := make(map[string]struct{}, len(passengers))
	for i, p := range passengers {
		if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
			return fmt.Errorf("%w: passenger %d: name is required", ErrInvalidRequest, i+1)
		}
		passport := strings.ToUpper(strings.TrimSpace(p.PassportNumber))
		if passport == "" {
			return fmt.Errorf("%w: passenger %d: passport number is required", ErrInvalidRequest, i+1)
		}
		if _, dup := seen[passport]; dup {
			return fmt.Errorf("%w: duplicate passport number %s", ErrInvalidRequest, passport)
		}
		seen[passport] = struct{}{}
	}
	return nil
}
