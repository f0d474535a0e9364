package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stayplace/service-booking/internal/domain"
)

// Success writes a 200 with the payload under "data".
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Created writes a 201 with the payload under "data".
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// Error maps a domain error to its HTTP status. Unknown errors become 500
// without leaking internals.
func Error(c *gin.Context, err error) {
	var domErr *domain.DomainError
	if errors.As(err, &domErr) {
		c.JSON(statusFor(domErr.Err), gin.H{"error": domErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func statusFor(sentinel error) int {
	switch sentinel {
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrConflict:
		return http.StatusConflict
	case domain.ErrValidation, domain.ErrPromotionInvalid:
		return http.StatusBadRequest
	case domain.ErrInvalidState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
