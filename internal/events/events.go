package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kafka topics.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// Booking event types (CloudEvent type attribute).
const (
	BookingConfirmed = "booking.confirmed"
	BookingRejected  = "booking.rejected"
	BookingCancelled = "booking.cancelled"
	BookingPaid      = "booking.paid"
	BookingCompleted = "booking.completed"
)

// Payment event types consumed from the payment service.
const (
	PaymentSucceeded = "payment.succeeded"
)

// BookingEvent is the payload for all booking lifecycle events.
type BookingEvent struct {
	BookingID  uuid.UUID       `json:"booking_id"`
	GuestID    uuid.UUID       `json:"guest_id"`
	PropertyID uuid.UUID       `json:"property_id"`
	Status     string          `json:"status"`
	CheckIn    time.Time       `json:"check_in"`
	CheckOut   time.Time       `json:"check_out"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// PaymentSucceededEvent is the payload of payment.succeeded events.
type PaymentSucceededEvent struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	BookingID  uuid.UUID       `json:"booking_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OccurredAt time.Time       `json:"occurred_at"`
}
