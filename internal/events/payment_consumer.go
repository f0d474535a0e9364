package events

import (
	"context"
	"errors"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stayplace/service-booking/internal/application"
	"github.com/stayplace/service-booking/internal/domain"
	"github.com/stayplace/service-booking/internal/platform/kafka"
)

// PaymentEventConsumer listens to payment events and marks bookings paid.
type PaymentEventConsumer struct {
	consumer       *kafka.Consumer
	bookingService *application.BookingService
	logger         *zap.Logger
}

// NewPaymentEventConsumer creates a new consumer for payment events.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	bookingService *application.BookingService,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer:       consumer,
		bookingService: bookingService,
		logger:         logger,
	}
}

// Start begins consuming payment events. It blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close releases the underlying Kafka reader.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

// handleMessage routes incoming Kafka messages to the appropriate handler.
func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	c.logger.Info("received payment event",
		zap.String("type", cloudEvent.Type),
		zap.String("id", cloudEvent.ID),
	)

	switch {
	case strings.EqualFold(cloudEvent.Type, PaymentSucceeded):
		return c.handlePaymentSucceeded(ctx, cloudEvent)

	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// handlePaymentSucceeded processes a PaymentSucceededEvent.
func (c *PaymentEventConsumer) handlePaymentSucceeded(ctx context.Context, ce kafka.CloudEvent) error {
	var event PaymentSucceededEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse PaymentSucceededEvent data", zap.Error(err))
		return err
	}

	_, err := c.bookingService.ConfirmPayment(ctx, event.BookingID, event.Amount)
	if err != nil {
		// Invalid-state means the booking already moved on; the offset should
		// still be committed so the message is not redelivered forever.
		if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("payment event skipped",
				zap.String("booking_id", event.BookingID.String()), zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}
