package api

import (
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
)

const dateLayout = "2006-01-02"

type fareClassResponse struct {
	FareClass      domain.FareClass `json:"fare_class"`
	BasePrice      float64          `json:"base_price"`
	CurrentPrice   float64          `json:"current_price"`
	AvailableSeats int              `json:"available_seats"`
}

type flightResponse struct {
	ID              int64               `json:"id"`
	FlightNumber    string              `json:"flight_number"`
	Airline         string              `json:"airline,omitempty"`
	FromAirport     string              `json:"from_airport"`
	ToAirport       string              `json:"to_airport"`
	DepartureTime   time.Time           `json:"departure_time"`
	ArrivalTime     time.Time           `json:"arrival_time"`
	Status          domain.FlightStatus `json:"status"`
	TotalCapacity   int                 `json:"total_capacity"`
	AvailableSeats  int                 `json:"available_seats"`
	FareClassPrices []fareClassResponse `json:"fare_class_prices"`
}

func newFlightResponse(f *domain.Flight) flightResponse {
	resp := flightResponse{
		ID:              f.ID,
		FlightNumber:    f.FlightNumber,
		Airline:         f.Airline,
		FromAirport:     f.FromAirport,
		ToAirport:       f.ToAirport,
		DepartureTime:   f.DepartureTime,
		ArrivalTime:     f.ArrivalTime,
		Status:          f.Status,
		TotalCapacity:   f.TotalCapacity,
		AvailableSeats:  f.AvailableSeats,
		FareClassPrices: make([]fareClassResponse, 0, len(f.FareClassPrices)),
	}
	for _, p := range f.FareClassPrices {
		resp.FareClassPrices = append(resp.FareClassPrices, fareClassResponse{
			FareClass:      p.FareClass,
			BasePrice:      p.BasePrice,
			CurrentPrice:   p.CurrentPrice,
			AvailableSeats: p.AvailableSeats,
		})
	}
	return resp
}

type passengerResponse struct {
	ID             int64         `json:"id"`
	FirstName      string        `json:"first_name"`
	LastName       string        `json:"last_name"`
	PassportNumber string        `json:"passport_number"`
	DateOfBirth    string        `json:"date_of_birth,omitempty"`
	Gender         domain.Gender `json:"gender,omitempty"`
}

type paymentResponse struct {
	ID               int64                `json:"id"`
	BookingID        int64                `json:"booking_id"`
	Amount           float64              `json:"amount"`
	Method           domain.PaymentMethod `json:"method"`
	Status           domain.PaymentStatus `json:"status"`
	PaymentReference string               `json:"payment_reference"`
	PaymentDate      time.Time            `json:"payment_date"`
}

func newPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:               p.ID,
		BookingID:        p.BookingID,
		Amount:           p.Amount,
		Method:           p.Method,
		Status:           p.Status,
		PaymentReference: p.PaymentReference,
		PaymentDate:      p.PaymentDate,
	}
}

type bookingResponse struct {
	ID          int64               `json:"id"`
	BookingCode string              `json:"booking_code"`
	FlightID    int64               `json:"flight_id"`
	UserID      int64               `json:"user_id"`
	FareClass   domain.FareClass    `json:"fare_class,omitempty"`
	Seats       int                 `json:"seats"`
	TotalAmount float64             `json:"total_amount"`
	Status      string              `json:"status"`
	BookingDate time.Time           `json:"booking_date"`
	Passengers  []passengerResponse `json:"passengers"`
	Flight      *flightResponse     `json:"flight,omitempty"`
	Payment     *paymentResponse    `json:"payment,omitempty"`
}

func newBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:          b.ID,
		BookingCode: b.BookingCode,
		FlightID:    b.FlightID,
		UserID:      b.UserID,
		FareClass:   b.FareClass,
		Seats:       b.SeatsHeld,
		TotalAmount: b.TotalAmount,
		Status:      string(b.Status),
		BookingDate: b.BookingDate,
		Passengers:  make([]passengerResponse, 0, len(b.Passengers)),
	}
	for _, p := range b.Passengers {
		pr := passengerResponse{
			ID:             p.ID,
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			PassportNumber: p.PassportNumber,
			Gender:         p.Gender,
		}
		if !p.DateOfBirth.IsZero() {
			pr.DateOfBirth = p.DateOfBirth.Format(dateLayout)
		}
		resp.Passengers = append(resp.Passengers, pr)
	}
	if b.Flight != nil {
		f := newFlightResponse(b.Flight)
		resp.Flight = &f
	}
	if b.Payment != nil {
		p := newPaymentResponse(b.Payment)
		resp.Payment = &p
	}
	return resp
}

func newBookingResponses(bookings []domain.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, newBookingResponse(&bookings[i]))
	}
	return out
}
