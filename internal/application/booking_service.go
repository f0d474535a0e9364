package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stayplace/service-booking/internal/domain"
	bookingDomain "github.com/stayplace/service-booking/internal/domain/booking"
	"github.com/stayplace/service-booking/internal/saga"
)

// EventPublisher publishes booking lifecycle events. Publishing is
// best-effort after the state change is durable; a broker outage never rolls
// back a booking.
type EventPublisher interface {
	BookingConfirmed(ctx context.Context, b *bookingDomain.Booking) error
	BookingRejected(ctx context.Context, b *bookingDomain.Booking) error
	BookingCancelled(ctx context.Context, b *bookingDomain.Booking) error
	BookingPaid(ctx context.Context, b *bookingDomain.Booking) error
	BookingCompleted(ctx context.Context, b *bookingDomain.Booking) error
}

// CreateBookingRequest holds data to create a booking. Dates are RFC3339.
type CreateBookingRequest struct {
	GuestID       uuid.UUID       `json:"guest_id" binding:"required"`
	PropertyID    uuid.UUID       `json:"property_id" binding:"required"`
	GuestName     string          `json:"guest_name" binding:"required"`
	GuestEmail    string          `json:"guest_email" binding:"required,email"`
	CheckIn       string          `json:"check_in" binding:"required"`
	CheckOut      string          `json:"check_out" binding:"required"`
	Adults        int             `json:"adults" binding:"required,gt=0"`
	Children      int             `json:"children"`
	TotalPrice    decimal.Decimal `json:"total_price" binding:"required"`
	PromotionCode string          `json:"promotion_code"`
	Notes         string          `json:"notes"`
}

// BookingDTO is the API representation of a booking.
type BookingDTO struct {
	ID            uuid.UUID       `json:"id"`
	GuestID       uuid.UUID       `json:"guest_id"`
	PropertyID    uuid.UUID       `json:"property_id"`
	GuestName     string          `json:"guest_name"`
	GuestEmail    string          `json:"guest_email"`
	CheckIn       time.Time       `json:"check_in"`
	CheckOut      time.Time       `json:"check_out"`
	Status        string          `json:"status"`
	Adults        int             `json:"adults"`
	Children      int             `json:"children"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PromotionCode string          `json:"promotion_code,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy   string          `json:"cancelled_by,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BookingStatsDTO holds booking counts for the admin dashboard.
type BookingStatsDTO struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// BookingService orchestrates the guest-facing booking use cases: creation,
// rejection, cancellation and payment confirmation.
type BookingService struct {
	store     Store
	ledger    *PromotionLedger
	publisher EventPublisher
	clock     domain.Clock
	logger    *zap.Logger
}

// NewBookingService creates a BookingService.
func NewBookingService(store Store, ledger *PromotionLedger, publisher EventPublisher, clock domain.Clock, logger *zap.Logger) *BookingService {
	return &BookingService{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// CreateBooking creates a pending booking. An attached promotion code is
// validated up front but consumed only when payment is confirmed.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingDTO, error) {
	checkIn, err := time.Parse(time.RFC3339, req.CheckIn)
	if err != nil {
		return nil, domain.NewValidationError("invalid check_in format (use RFC3339)")
	}
	checkOut, err := time.Parse(time.RFC3339, req.CheckOut)
	if err != nil {
		return nil, domain.NewValidationError("invalid check_out format (use RFC3339)")
	}

	b, err := bookingDomain.NewBooking(
		req.GuestID, req.PropertyID,
		req.GuestName, req.GuestEmail,
		checkIn, checkOut,
		req.Adults, req.Children,
		req.TotalPrice,
		req.PromotionCode, req.Notes,
		s.clock(),
	)
	if err != nil {
		return nil, err
	}

	if b.PromotionCode() != "" {
		preview, err := s.ledger.Preview(ctx, b.PromotionCode(), b.TotalPrice())
		if err != nil {
			return nil, err
		}
		if !preview.Valid {
			return nil, domain.NewPromotionInvalidError(preview.Message)
		}
	}

	if err := s.store.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID().String()),
		zap.String("property_id", b.PropertyID().String()),
	)
	dto := toBookingDTO(b)
	return &dto, nil
}

// GetBooking retrieves a booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*BookingDTO, error) {
	b, err := s.store.Bookings().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toBookingDTO(b)
	return &dto, nil
}

// RejectBooking transitions a pending booking to rejected by host action.
func (s *BookingService) RejectBooking(ctx context.Context, id uuid.UUID, reason string) (*BookingDTO, error) {
	var rejected *bookingDomain.Booking

	err := s.store.WithinTx(ctx, func(tx Store) error {
		b, err := tx.Bookings().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := b.Reject(reason, s.clock()); err != nil {
			return err
		}
		b.IncrementVersion()
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		rejected = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.BookingRejected(ctx, rejected); err != nil {
		s.logger.Warn("failed to publish booking rejected event",
			zap.String("booking_id", rejected.ID().String()), zap.Error(err))
	}

	dto := toBookingDTO(rejected)
	return &dto, nil
}

// CancelBooking cancels a pending or confirmed booking on behalf of the
// given actor. A speculative promotion consumption is refunded in the same
// transaction, so the booking mutation and its ledger side effect are atomic.
func (s *BookingService) CancelBooking(ctx context.Context, id uuid.UUID, actor, reason string) (*BookingDTO, error) {
	var cancelled *bookingDomain.Booking

	err := s.store.WithinTx(ctx, func(tx Store) error {
		b, err := tx.Bookings().FindByID(ctx, id)
		if err != nil {
			return err
		}

		if _, err := s.ledger.Refund(ctx, tx, id); err != nil {
			return err
		}

		if err := b.Cancel(actor, reason, s.clock()); err != nil {
			return err
		}
		b.IncrementVersion()
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.BookingCancelled(ctx, cancelled); err != nil {
		s.logger.Warn("failed to publish booking cancelled event",
			zap.String("booking_id", cancelled.ID().String()), zap.Error(err))
	}

	dto := toBookingDTO(cancelled)
	return &dto, nil
}

// ConfirmPayment moves a confirmed booking to paid after verifying the paid
// amount against the discounted total. The promotion (when attached) is
// consumed first; if persisting the paid status then fails, the consumption
// is compensated back so the grant is not burned on a booking that never
// became paid.
func (s *BookingService) ConfirmPayment(ctx context.Context, id uuid.UUID, amountPaid decimal.Decimal) (*BookingDTO, error) {
	b, err := s.store.Bookings().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status() != bookingDomain.StatusConfirmed {
		return nil, domain.NewInvalidStateError(string(b.Status()), string(bookingDomain.StatusPaid))
	}

	discount := decimal.Zero
	var paid *bookingDomain.Booking

	sg := saga.New("confirm_payment", s.logger)

	if b.PromotionCode() != "" {
		sg.AddStep(saga.Step{
			Name: "consume_promotion",
			Execute: func(ctx context.Context) error {
				return s.store.WithinTx(ctx, func(tx Store) error {
					var err error
					discount, err = s.ledger.Consume(ctx, tx, b.GuestID(), b.PromotionCode(), id, b.TotalPrice())
					return err
				})
			},
			Compensate: func(ctx context.Context) error {
				return s.store.WithinTx(ctx, func(tx Store) error {
					_, err := s.ledger.Refund(ctx, tx, id)
					return err
				})
			},
		})
	}

	sg.AddStep(saga.Step{
		Name: "verify_amount",
		Execute: func(ctx context.Context) error {
			expected := b.TotalPrice().Sub(discount)
			if !amountPaid.Equal(expected) {
				return domain.NewValidationError(
					"payment amount " + amountPaid.String() + " does not match expected total " + expected.String())
			}
			return nil
		},
	})

	sg.AddStep(saga.Step{
		Name: "mark_paid",
		Execute: func(ctx context.Context) error {
			return s.store.WithinTx(ctx, func(tx Store) error {
				current, err := tx.Bookings().FindByID(ctx, id)
				if err != nil {
					return err
				}
				if err := current.MarkPaid(s.clock()); err != nil {
					return err
				}
				current.IncrementVersion()
				if err := tx.Bookings().Update(ctx, current); err != nil {
					return err
				}
				paid = current
				return nil
			})
		},
	})

	if err := sg.Execute(ctx); err != nil {
		return nil, err
	}

	if err := s.publisher.BookingPaid(ctx, paid); err != nil {
		s.logger.Warn("failed to publish booking paid event",
			zap.String("booking_id", paid.ID().String()), zap.Error(err))
	}

	dto := toBookingDTO(paid)
	return &dto, nil
}

// GetBookingStats returns booking counts by status (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.store.Bookings().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{Total: total, ByStatus: counts}, nil
}

// toBookingDTO maps a domain Booking to its DTO.
func toBookingDTO(b *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:            b.ID(),
		GuestID:       b.GuestID(),
		PropertyID:    b.PropertyID(),
		GuestName:     b.GuestName(),
		GuestEmail:    b.GuestEmail(),
		CheckIn:       b.CheckIn(),
		CheckOut:      b.CheckOut(),
		Status:        string(b.Status()),
		Adults:        b.Adults(),
		Children:      b.Children(),
		TotalPrice:    b.TotalPrice(),
		PromotionCode: b.PromotionCode(),
		Notes:         b.Notes(),
		ConfirmedAt:   b.ConfirmedAt(),
		CancelledAt:   b.CancelledAt(),
		CancelledBy:   b.CancelledBy(),
		CancelReason:  b.CancelReason(),
		CreatedAt:     b.CreatedAt(),
		UpdatedAt:     b.UpdatedAt(),
	}
}
