// Package pricing computes dynamic per-passenger fares from a flight's fare
// inventory, the time left before departure and the size of the party.
package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
)

type Clock func() time.Time

// Factors records every multiplier applied to a quote.
type Factors struct {
	Time     float64 `json:"time"`
	Scarcity float64 `json:"scarcity"`
	Group    float64 `json:"group"`
}

type Quote struct {
	FlightID          int64            `json:"flight_id"`
	FareClass         domain.FareClass `json:"fare_class"`
	Passengers        int              `json:"passengers"`
	BasePrice         float64          `json:"base_price"`
	PricePerPassenger float64          `json:"price_per_passenger"`
	Total             float64          `json:"total"`
	DaysToDeparture   int              `json:"days_to_departure"`
	SeatRatio         float64          `json:"seat_ratio"`
	Factors           Factors          `json:"factors"`
}

type Engine struct {
	now Clock
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.now = c
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate returns the per-passenger price. It never goes below the fare
// class base price.
func (e *Engine) Calculate(flight *domain.Flight, class domain.FareClass, passengers int) (float64, error) {
	q, err := e.Quote(flight, class, passengers)
	if err != nil {
		return 0, err
	}
	return q.PricePerPassenger, nil
}

func (e *Engine) Quote(flight *domain.Flight, class domain.FareClass, passengers int) (*Quote, error) {
	if flight == nil {
		return nil, fmt.Errorf("%w: flight is required", domain.ErrInvalidRequest)
	}
	fare, err := flight.FareClassPrice(class)
	if err != nil {
		return nil, fmt.Errorf("%w: fare class %s not available for flight %s", domain.ErrInvalidRequest, class, flight.FlightNumber)
	}
	if passengers < 1 {
		passengers = 1
	}

	days := DaysUntil(e.now(), flight.DepartureTime)
	ratio := 0.0
	if flight.TotalCapacity > 0 {
		ratio = float64(fare.AvailableSeats) / float64(flight.TotalCapacity)
	}

	f := Factors{
		Time:     TimeFactor(days),
		Scarcity: ScarcityFactor(ratio),
		Group:    GroupFactor(passengers),
	}

	// order matters: each factor scales the running price
	price := fare.BasePrice
	price *= f.Time
	price *= f.Scarcity
	price *= f.Group
	price = math.Max(fare.BasePrice, roundCents(price))

	return &Quote{
		FlightID:          flight.ID,
		FareClass:         class,
		Passengers:        passengers,
		BasePrice:         fare.BasePrice,
		PricePerPassenger: price,
		Total:             roundCents(price * float64(passengers)),
		DaysToDeparture:   days,
		SeatRatio:         ratio,
		Factors:           f,
	}, nil
}

// DaysUntil counts calendar days between the UTC dates of now and departure.
func DaysUntil(now, departure time.Time) int {
	today := truncateDay(now.UTC())
	dep := truncateDay(departure.UTC())
	return int(math.Floor(dep.Sub(today).Hours() / 24))
}

func TimeFactor(days int) float64 {
	switch {
	case days < 7:
		return 1.30
	case days < 30:
		return 1.15
	default:
		return 1.00
	}
}

func ScarcityFactor(ratio float64) float64 {
	switch {
	case ratio < 0.20:
		return 1.20
	case ratio < 0.50:
		return 1.10
	default:
		return 1.00
	}
}

func GroupFactor(passengers int) float64 {
	switch {
	case passengers >= 10:
		return 0.90
	case passengers >= 4:
		return 0.95
	default:
		return 1.00
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
