package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/stayplace/service-booking/internal/application"
	"github.com/stayplace/service-booking/internal/platform/response"
)

// AdminHandler exposes operational endpoints: stats and manual sweep triggers.
type AdminHandler struct {
	bookings   *application.BookingService
	completion *application.CompletionReconciler
	timeout    *application.PaymentTimeoutReconciler
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(bookings *application.BookingService, completion *application.CompletionReconciler, timeout *application.PaymentTimeoutReconciler) *AdminHandler {
	return &AdminHandler{bookings: bookings, completion: completion, timeout: timeout}
}

// RegisterRoutes registers all admin routes on the given router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	{
		admin.GET("/stats", h.GetStats)
		admin.POST("/sweeps/completion", h.RunCompletionSweep)
		admin.POST("/sweeps/payment-timeout", h.RunPaymentTimeoutSweep)
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// RunCompletionSweep handles POST /api/v1/admin/sweeps/completion
func (h *AdminHandler) RunCompletionSweep(c *gin.Context) {
	summary, err := h.completion.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

// RunPaymentTimeoutSweep handles POST /api/v1/admin/sweeps/payment-timeout
func (h *AdminHandler) RunPaymentTimeoutSweep(c *gin.Context) {
	summary, err := h.timeout.Run(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}
