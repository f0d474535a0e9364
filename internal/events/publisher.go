package events

import (
	"context"

	"go.uber.org/zap"

	bookingDomain "github.com/stayplace/service-booking/internal/domain/booking"
	"github.com/stayplace/service-booking/internal/platform/kafka"
)

const eventSource = "service-booking"

// Publisher emits booking lifecycle events to Kafka as CloudEvents.
type Publisher struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(producer *kafka.Producer, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

func (p *Publisher) BookingConfirmed(ctx context.Context, b *bookingDomain.Booking) error {
	return p.publish(ctx, BookingConfirmed, b)
}

func (p *Publisher) BookingRejected(ctx context.Context, b *bookingDomain.Booking) error {
	return p.publish(ctx, BookingRejected, b)
}

func (p *Publisher) BookingCancelled(ctx context.Context, b *bookingDomain.Booking) error {
	return p.publish(ctx, BookingCancelled, b)
}

func (p *Publisher) BookingPaid(ctx context.Context, b *bookingDomain.Booking) error {
	return p.publish(ctx, BookingPaid, b)
}

func (p *Publisher) BookingCompleted(ctx context.Context, b *bookingDomain.Booking) error {
	return p.publish(ctx, BookingCompleted, b)
}

func (p *Publisher) publish(ctx context.Context, eventType string, b *bookingDomain.Booking) error {
	event := BookingEvent{
		BookingID:  b.ID(),
		GuestID:    b.GuestID(),
		PropertyID: b.PropertyID(),
		Status:     string(b.Status()),
		CheckIn:    b.CheckIn(),
		CheckOut:   b.CheckOut(),
		TotalPrice: b.TotalPrice(),
		Reason:     b.CancelReason(),
		OccurredAt: b.UpdatedAt(),
	}

	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, event)
	if err != nil {
		return err
	}
	return p.producer.PublishEvent(ctx, TopicBookingEvents, cloudEvent)
}
