package api

import (
	"net/http"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/service/payment"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service payment.PaymentUseCase
}

type createPaymentRequest struct {
	BookingID int64   `json:"booking_id" binding:"required,gt=0"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
	Method    string  `json:"method" binding:"required,paymentmethod"`
	Status    string  `json:"status" binding:"omitempty,paymentstatus"`
}

func NewPaymentHandler(service payment.PaymentUseCase) *PaymentHandler {
	registerValidators()
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router, admin *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.GET("/reference/:ref", h.getByReference)
	router.GET("/booking/:bookingId", h.listByBooking)
	router.GET("/status/:status", h.listByStatus)
	router.PUT("/:id/status", h.updateStatus)

	admin.DELETE("/:id", h.delete)
}

func (h *PaymentHandler) create(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		writeError(c, err)
		return
	}
	input := payment.CreatePaymentInput{BookingID: req.BookingID, Amount: req.Amount, Method: method}
	if req.Status != "" {
		if input.Status, err = domain.ParsePaymentStatus(req.Status); err != nil {
			writeError(c, err)
			return
		}
	}

	p, err := h.service.CreatePayment(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPaymentResponse(p))
}

func (h *PaymentHandler) get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPaymentResponse(p))
}

func (h *PaymentHandler) getByReference(c *gin.Context) {
	p, err := h.service.GetByReference(c.Request.Context(), c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPaymentResponse(p))
}

func (h *PaymentHandler) listByBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	list, err := h.service.ListByBooking(c.Request.Context(), bookingID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentResponses(list))
}

func (h *PaymentHandler) listByStatus(c *gin.Context) {
	status, err := domain.ParsePaymentStatus(c.Param("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	limit, offset := pageParams(c)
	list, err := h.service.ListByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentResponses(list))
}

func (h *PaymentHandler) updateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	status, err := domain.ParsePaymentStatus(c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := h.service.UpdatePaymentStatus(c.Request.Context(), id, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPaymentResponse(p))
}

func (h *PaymentHandler) delete(c *gin.Context) {
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

func paymentResponses(list []domain.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(list))
	for i := range list {
		out = append(out, newPaymentResponse(&list[i]))
	}
	return out
}
