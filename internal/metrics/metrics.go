package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airticketing_bookings_created_total",
		Help: "Bookings successfully created",
	})

	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airticketing_booking_transitions_total",
		Help: "Booking status transitions by target status",
	}, []string{"status"})

	SeatsReserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airticketing_seats_reserved_total",
		Help: "Seats taken out of flight inventory",
	})

	SeatsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airticketing_seats_released_total",
		Help: "Seats returned to flight inventory by cancellations",
	})

	InventoryRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airticketing_inventory_rejections_total",
		Help: "Booking requests rejected for lack of seats",
	})

	SeatConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airticketing_seat_conflicts_total",
		Help: "Seat mutations retried after lock contention or serialization failure",
	})

	PaymentsByStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airticketing_payments_total",
		Help: "Payments created or updated, by resulting status",
	}, []string{"status"})

	PriceQuotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airticketing_price_quotes_total",
		Help: "Dynamic price quotes by fare class",
	}, []string{"fare_class"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airticketing_events_published_total",
		Help: "Kafka events published, by topic and result",
	}, []string{"topic", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "airticketing_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
