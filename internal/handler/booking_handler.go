package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayplace/service-booking/internal/application"
	"github.com/stayplace/service-booking/internal/platform/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	bookings  *application.BookingService
	approvals *application.ApprovalService
	ledger    *application.PromotionLedger
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookings *application.BookingService, approvals *application.ApprovalService, ledger *application.PromotionLedger) *BookingHandler {
	return &BookingHandler{bookings: bookings, approvals: approvals, ledger: ledger}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/approval-preview", h.PreviewApproval)
		bookings.POST("/:id/approve", h.ApproveBooking)
		bookings.POST("/:id/reject", h.RejectBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/payment", h.ConfirmPayment)
	}

	promotions := r.Group("/promotions")
	{
		promotions.POST("/preview", h.PreviewPromotion)
	}
}

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.bookings.CreateBooking(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	dto, err := h.bookings.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// PreviewApproval handles GET /api/v1/bookings/:id/approval-preview
func (h *BookingHandler) PreviewApproval(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	preview, err := h.approvals.PreviewApproval(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, preview)
}

// ApproveBooking handles POST /api/v1/bookings/:id/approve
func (h *BookingHandler) ApproveBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	dto, err := h.approvals.ApproveBooking(c.Request.Context(), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectBooking handles POST /api/v1/bookings/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.bookings.RejectBooking(c.Request.Context(), bookingID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

type cancelRequest struct {
	Actor  string `json:"actor" binding:"required,oneof=guest host"`
	Reason string `json:"reason" binding:"required"`
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.bookings.CancelBooking(c.Request.Context(), bookingID, req.Actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

type confirmPaymentRequest struct {
	AmountPaid decimal.Decimal `json:"amount_paid" binding:"required"`
}

// ConfirmPayment handles POST /api/v1/bookings/:id/payment
func (h *BookingHandler) ConfirmPayment(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.bookings.ConfirmPayment(c.Request.Context(), bookingID, req.AmountPaid)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

type promotionPreviewRequest struct {
	Code   string          `json:"code" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// PreviewPromotion handles POST /api/v1/promotions/preview
func (h *BookingHandler) PreviewPromotion(c *gin.Context) {
	var req promotionPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	preview, err := h.ledger.Preview(c.Request.Context(), req.Code, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, preview)
}
