package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type flightRequest struct {
	FlightNumber           string             `json:"flight_number" binding:"required"`
	Airline                string             `json:"airline"`
	FromAirport            string             `json:"from_airport" binding:"required"`
	ToAirport              string             `json:"to_airport" binding:"required,nefield=FromAirport"`
	DepartureTime          time.Time          `json:"departure_time" binding:"required"`
	ArrivalTime            time.Time          `json:"arrival_time" binding:"required,gtfield=DepartureTime"`
	Status                 string             `json:"status"`
	TotalCapacity          int                `json:"total_capacity" binding:"required,gt=0"`
	AvailableSeats         *int               `json:"available_seats" binding:"omitempty,gte=0"`
	FareClassPrices        map[string]float64 `json:"fare_class_prices" binding:"omitempty,dive,keys,fareclass,endkeys,gt=0"`
	AvailableSeatsPerClass map[string]int     `json:"available_seats_per_class" binding:"omitempty,dive,keys,fareclass,endkeys,gte=0"`
}

type fareClassRequest struct {
	Price          float64 `json:"price" binding:"required,gt=0"`
	AvailableSeats int     `json:"available_seats" binding:"gte=0"`
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	registerValidators()
	return &FlightHandler{service: service}
}

// Register mounts the read routes on router and the write routes on admin.
func (h *FlightHandler) Register(router, admin *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/number/:number", h.getByNumber)
	router.GET("/:id/seats", h.seats)
	router.GET("/:id/price", h.price)

	admin.POST("", h.create)
	admin.PUT("/:id", h.update)
	admin.PUT("/:id/fare-classes/:class", h.setFareClass)
	admin.DELETE("/:id", h.delete)
}

// searchParams are the query keys that switch list from the cached full
// listing to a filtered, paginated search.
var searchParams = []string{"q", "from", "to", "status", "date", "departure_from", "departure_to", "limit", "offset"}

func (h *FlightHandler) list(c *gin.Context) {
	var (
		list []domain.Flight
		err  error
	)
	if isSearch(c) {
		filter, ok := flightFilter(c)
		if !ok {
			return
		}
		limit, offset := pageParams(c)
		list, err = h.service.Search(c.Request.Context(), filter, limit, offset)
	} else {
		list, err = h.service.List(c.Request.Context())
	}
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]flightResponse, 0, len(list))
	for i := range list {
		out = append(out, newFlightResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func isSearch(c *gin.Context) bool {
	for _, key := range searchParams {
		if _, ok := c.GetQuery(key); ok {
			return true
		}
	}
	return false
}

// flightFilter reads the search query. date selects one UTC calendar day and
// takes precedence over departure_from and departure_to.
func flightFilter(c *gin.Context) (domain.FlightFilter, bool) {
	filter := domain.FlightFilter{
		Query: strings.TrimSpace(c.Query("q")),
		From:  strings.TrimSpace(c.Query("from")),
		To:    strings.TrimSpace(c.Query("to")),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseFlightStatus(raw)
		if err != nil {
			writeError(c, err)
			return filter, false
		}
		filter.Status = status
	}
	for key, dst := range map[string]*time.Time{"departure_from": &filter.DepartFrom, "departure_to": &filter.DepartTo} {
		if raw := c.Query(key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				badRequest(c, key+" must be an RFC3339 timestamp")
				return filter, false
			}
			*dst = t
		}
	}
	if raw := c.Query("date"); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return filter, false
		}
		filter.DepartFrom, filter.DepartTo = day, day.AddDate(0, 0, 1)
	}
	return filter, true
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFlightResponse(flight))
}

func (h *FlightHandler) getByNumber(c *gin.Context) {
	flight, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFlightResponse(flight))
}

func (h *FlightHandler) seats(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var class domain.FareClass
	if raw := c.Query("fare_class"); raw != "" {
		parsed, err := domain.ParseFareClass(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		class = parsed
	}
	seats, err := h.service.AvailableSeats(c.Request.Context(), id, class)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flight_id": id, "fare_class": class, "available_seats": seats})
}

func (h *FlightHandler) price(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	class, err := domain.ParseFareClass(c.Query("fare_class"))
	if err != nil {
		writeError(c, err)
		return
	}
	passengers := 1
	if raw := c.Query("passengers"); raw != "" {
		passengers, err = strconv.Atoi(raw)
		if err != nil || passengers < 1 {
			badRequest(c, "passengers must be a positive integer")
			return
		}
	}
	quote, err := h.service.QuotePrice(c.Request.Context(), id, class, passengers)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *FlightHandler) create(c *gin.Context) {
	var req flightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	input, err := req.input()
	if err != nil {
		writeError(c, err)
		return
	}
	flight, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFlightResponse(flight))
}

func (h *FlightHandler) update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req flightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	input, err := req.input()
	if err != nil {
		writeError(c, err)
		return
	}
	flight, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFlightResponse(flight))
}

func (h *FlightHandler) setFareClass(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	class, err := domain.ParseFareClass(c.Param("class"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req fareClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	flight, err := h.service.SetFareClassPrice(c.Request.Context(), id, class, req.Price, req.AvailableSeats)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFlightResponse(flight))
}

func (h *FlightHandler) delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r flightRequest) input() (flights.FlightInput, error) {
	input := flights.FlightInput{
		FlightNumber:   r.FlightNumber,
		Airline:        r.Airline,
		FromAirport:    r.FromAirport,
		ToAirport:      r.ToAirport,
		DepartureTime:  r.DepartureTime,
		ArrivalTime:    r.ArrivalTime,
		Status:         r.Status,
		TotalCapacity:  r.TotalCapacity,
		AvailableSeats: r.AvailableSeats,
	}
	if r.FareClassPrices != nil {
		input.FareClassPrices = make(map[domain.FareClass]float64, len(r.FareClassPrices))
		input.AvailableSeatsPerClass = make(map[domain.FareClass]int, len(r.AvailableSeatsPerClass))
		for raw, price := range r.FareClassPrices {
			class, err := domain.ParseFareClass(raw)
			if err != nil {
				return input, err
			}
			input.FareClassPrices[class] = price
		}
		for raw, seats := range r.AvailableSeatsPerClass {
			class, err := domain.ParseFareClass(raw)
			if err != nil {
				return input, err
			}
			input.AvailableSeatsPerClass[class] = seats
		}
	}
	return input, nil
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
