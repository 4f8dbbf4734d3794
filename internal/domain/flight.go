package domain

import (
	"fmt"
	"strings"
	"time"
)

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "SCHEDULED"
	FlightStatusDelayed   FlightStatus = "DELAYED"
	FlightStatusBoarding  FlightStatus = "BOARDING"
	FlightStatusDeparted  FlightStatus = "DEPARTED"
	FlightStatusArrived   FlightStatus = "ARRIVED"
	FlightStatusCancelled FlightStatus = "CANCELLED"
)

func ParseFlightStatus(s string) (FlightStatus, error) {
	switch st := FlightStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case FlightStatusScheduled, FlightStatusDelayed, FlightStatusBoarding,
		FlightStatusDeparted, FlightStatusArrived, FlightStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown flight status %q", ErrInvalidRequest, s)
}

// FlightFilter narrows a flight search. Zero fields match everything;
// Query matches flight number, airline and either airport.
type FlightFilter struct {
	Query      string
	From       string
	To         string
	Status     FlightStatus
	DepartFrom time.Time
	DepartTo   time.Time
}

type FareClass string

const (
	FareClassEconomy        FareClass = "ECONOMY"
	FareClassPremiumEconomy FareClass = "PREMIUM_ECONOMY"
	FareClassBusiness       FareClass = "BUSINESS"
	FareClassFirst          FareClass = "FIRST"

	// fareClassFirstLegacy is accepted on input and stored as FIRST.
	fareClassFirstLegacy = "FIRST_CLASS"
)

var FareClasses = []FareClass{FareClassEconomy, FareClassPremiumEconomy, FareClassBusiness, FareClassFirst}

// ParseFareClass is case-insensitive and folds the FIRST_CLASS alias into FIRST.
func ParseFareClass(s string) (FareClass, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == fareClassFirstLegacy {
		return FareClassFirst, nil
	}
	for _, fc := range FareClasses {
		if FareClass(v) == fc {
			return fc, nil
		}
	}
	return "", fmt.Errorf("%w: unknown fare class %q", ErrInvalidRequest, s)
}

type FareClassPrice struct {
	ID             int64
	FlightID       int64
	FareClass      FareClass
	BasePrice      float64
	CurrentPrice   float64
	AvailableSeats int
}

type Flight struct {
	ID              int64
	FlightNumber    string
	Airline         string
	FromAirport     string
	ToAirport       string
	DepartureTime   time.Time
	ArrivalTime     time.Time
	Status          FlightStatus
	TotalCapacity   int
	AvailableSeats  int
	FareClassPrices []FareClassPrice
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AddFareClassPrice inserts or overwrites the seat pool for a fare class.
func (f *Flight) AddFareClassPrice(class FareClass, price float64, seats int) error {
	if price <= 0 {
		return fmt.Errorf("%w: price for %s must be positive", ErrInvalidRequest, class)
	}
	if seats < 0 {
		return fmt.Errorf("%w: seats for %s must not be negative", ErrInvalidRequest, class)
	}
	for i := range f.FareClassPrices {
		if f.FareClassPrices[i].FareClass == class {
			f.FareClassPrices[i].BasePrice = price
			f.FareClassPrices[i].CurrentPrice = price
			f.FareClassPrices[i].AvailableSeats = seats
			return nil
		}
	}
	f.FareClassPrices = append(f.FareClassPrices, FareClassPrice{
		FlightID:       f.ID,
		FareClass:      class,
		BasePrice:      price,
		CurrentPrice:   price,
		AvailableSeats: seats,
	})
	return nil
}

func (f *Flight) FareClassPrice(class FareClass) (*FareClassPrice, error) {
	for i := range f.FareClassPrices {
		if f.FareClassPrices[i].FareClass == class {
			return &f.FareClassPrices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: fare class %s is not offered on flight %s", ErrNotFound, class, f.FlightNumber)
}

func (f *Flight) AvailableSeatsFor(class FareClass) (int, error) {
	p, err := f.FareClassPrice(class)
	if err != nil {
		return 0, err
	}
	return p.AvailableSeats, nil
}

// FareClassSeats is the sum of all per-class pools.
func (f *Flight) FareClassSeats() int {
	total := 0
	for _, p := range f.FareClassPrices {
		total += p.AvailableSeats
	}
	return total
}

// SetFareClasses replaces the whole fare inventory. Every priced class must
// have an entry in seats.
func (f *Flight) SetFareClasses(prices map[FareClass]float64, seats map[FareClass]int) error {
	for class := range prices {
		if _, ok := seats[class]; !ok {
			return fmt.Errorf("%w: available seats missing for fare class %s", ErrInvalidRequest, class)
		}
	}
	f.FareClassPrices = nil
	for _, class := range FareClasses {
		price, ok := prices[class]
		if !ok {
			continue
		}
		if err := f.AddFareClassPrice(class, price, seats[class]); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flight) Validate() error {
	if strings.TrimSpace(f.FlightNumber) == "" {
		return fmt.Errorf("%w: flight number is required", ErrInvalidRequest)
	}
	if f.TotalCapacity <= 0 {
		return fmt.Errorf("%w: total capacity must be positive", ErrInvalidRequest)
	}
	if f.AvailableSeats < 0 || f.AvailableSeats > f.TotalCapacity {
		return fmt.Errorf("%w: available seats must be within [0, %d]", ErrInvalidRequest, f.TotalCapacity)
	}
	if !f.ArrivalTime.IsZero() && f.ArrivalTime.Before(f.DepartureTime) {
		return fmt.Errorf("%w: arrival before departure", ErrInvalidRequest)
	}
	if f.FareClassSeats() > f.TotalCapacity {
		return fmt.Errorf("%w: fare class seats exceed total capacity %d", ErrInvalidRequest, f.TotalCapacity)
	}
	return nil
}
