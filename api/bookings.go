package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type passengerRequest struct {
	FirstName      string `json:"first_name" binding:"required"`
	LastName       string `json:"last_name" binding:"required"`
	PassportNumber string `json:"passport_number" binding:"required"`
	DateOfBirth    string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Gender         string `json:"gender" binding:"omitempty,oneof=MALE FEMALE OTHER"`
}

type createBookingRequest struct {
	FlightID    int64              `json:"flight_id" binding:"required,gt=0"`
	UserID      int64              `json:"user_id" binding:"omitempty,gt=0"`
	FareClass   string             `json:"fare_class" binding:"omitempty,fareclass"`
	TotalAmount float64            `json:"total_amount" binding:"gte=0"`
	Passengers  []passengerRequest `json:"passengers" binding:"dive"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	registerValidators()
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router, admin *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.GET("/code/:code", h.getByCode)
	router.GET("/user/:userId", h.listByUser)
	router.GET("/flight/:flightId", h.listByFlight)
	router.PUT("/:id/cancel", h.cancel)

	admin.PUT("/:id/status", h.updateStatus)
	admin.DELETE("/:id", h.delete)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = currentUserID(c)
	}
	if userID == 0 {
		badRequest(c, "user_id is required")
		return
	}
	if !canAccessUser(c, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot book for another user"})
		return
	}

	input := booking.CreateBookingInput{
		FlightID:    req.FlightID,
		UserID:      userID,
		TotalAmount: req.TotalAmount,
		Passengers:  make([]domain.Passenger, 0, len(req.Passengers)),
	}
	if req.FareClass != "" {
		class, err := domain.ParseFareClass(req.FareClass)
		if err != nil {
			writeError(c, err)
			return
		}
		input.FareClass = class
	}
	for _, p := range req.Passengers {
		passenger := domain.Passenger{
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			PassportNumber: p.PassportNumber,
			Gender:         domain.Gender(p.Gender),
		}
		if p.DateOfBirth != "" {
			dob, err := time.Parse(dateLayout, p.DateOfBirth)
			if err != nil {
				badRequest(c, "invalid date_of_birth")
				return
			}
			passenger.DateOfBirth = dob
		}
		input.Passengers = append(input.Passengers, passenger)
	}

	created, err := h.service.CreateBooking(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !canAccessUser(c, b.UserID) {
		writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}

func (h *BookingHandler) getByCode(c *gin.Context) {
	b, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !canAccessUser(c, b.UserID) {
		writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}

func (h *BookingHandler) listByUser(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	if !canAccessUser(c, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	limit, offset := pageParams(c)
	list, err := h.service.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponses(list))
}

func (h *BookingHandler) listByFlight(c *gin.Context) {
	flightID, ok := pathID(c, "flightId")
	if !ok {
		return
	}
	if currentUserID(c) != 0 && currentRole(c) != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	limit, offset := pageParams(c)
	list, err := h.service.ListByFlight(c.Request.Context(), flightID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponses(list))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	current, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !canAccessUser(c, current.UserID) {
		writeError(c, domain.ErrNotFound)
		return
	}
	cancelled, err := h.service.CancelBooking(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(cancelled))
}

func (h *BookingHandler) updateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	status, err := domain.ParseBookingStatus(c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	updated, err := h.service.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(updated))
}

func (h *BookingHandler) delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteBooking(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
