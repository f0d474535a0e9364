package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stayplace/service-booking/internal/domain"
	bookingDomain "github.com/stayplace/service-booking/internal/domain/booking"
)

// ApprovalLock serializes approvals per property. Two hosts approving
// overlapping requests for the same property at the same moment would both
// see the other's booking as still pending; the lock forces them through one
// at a time.
type ApprovalLock interface {
	Acquire(ctx context.Context, propertyID uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, propertyID uuid.UUID) error
}

// ConflictSummary describes one pending booking that approval would
// auto-reject.
type ConflictSummary struct {
	BookingID  uuid.UUID `json:"booking_id"`
	GuestName  string    `json:"guest_name"`
	GuestEmail string    `json:"guest_email"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Reason     string    `json:"reason"`
}

// ApprovalPreview is the dry-run result of approving a booking. It is
// computed from the same candidate selection that ApproveBooking applies, so
// the preview and the apply can only diverge when the data changes between
// the two calls.
type ApprovalPreview struct {
	Booking        BookingDTO        `json:"booking"`
	WillAutoReject []ConflictSummary `json:"will_auto_reject"`
	TotalConflicts int               `json:"total_conflicts"`
	Warning        string            `json:"warning,omitempty"`
}

// ApprovalService handles host approval of pending bookings, including the
// auto-rejection of conflicting pending requests for the same dates.
type ApprovalService struct {
	store     Store
	lock      ApprovalLock
	lockTTL   time.Duration
	publisher EventPublisher
	clock     domain.Clock
	logger    *zap.Logger
}

// NewApprovalService creates an ApprovalService.
func NewApprovalService(store Store, lock ApprovalLock, lockTTL time.Duration, publisher EventPublisher, clock domain.Clock, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		store:     store,
		lock:      lock,
		lockTTL:   lockTTL,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// conflictCandidates loads the pending bookings that approving target would
// auto-reject. Both PreviewApproval and ApproveBooking go through here.
func (s *ApprovalService) conflictCandidates(ctx context.Context, tx Store, target *bookingDomain.Booking) ([]*bookingDomain.Booking, error) {
	overlapping, err := tx.Bookings().FindOverlapping(
		ctx, target.PropertyID(), target.CheckIn(), target.CheckOut(),
		[]bookingDomain.Status{bookingDomain.StatusPending},
	)
	if err != nil {
		return nil, err
	}
	return bookingDomain.SelectConflicting(target, overlapping), nil
}

// activeOverlap reports whether a confirmed or paid booking already occupies
// any of the target's dates. Such an overlap blocks approval entirely.
func (s *ApprovalService) activeOverlap(ctx context.Context, tx Store, target *bookingDomain.Booking) (bool, error) {
	active, err := tx.Bookings().FindOverlapping(
		ctx, target.PropertyID(), target.CheckIn(), target.CheckOut(),
		[]bookingDomain.Status{bookingDomain.StatusConfirmed, bookingDomain.StatusPaid},
	)
	if err != nil {
		return false, err
	}
	return len(active) > 0, nil
}

// PreviewApproval computes, without mutating anything, what ApproveBooking
// would do for the given booking right now.
func (s *ApprovalService) PreviewApproval(ctx context.Context, bookingID uuid.UUID) (*ApprovalPreview, error) {
	target, err := s.store.Bookings().FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if target.Status() != bookingDomain.StatusPending {
		return nil, domain.NewInvalidStateError(string(target.Status()), string(bookingDomain.StatusConfirmed))
	}

	candidates, err := s.conflictCandidates(ctx, s.store, target)
	if err != nil {
		return nil, err
	}

	preview := &ApprovalPreview{
		Booking:        toBookingDTO(target),
		WillAutoReject: make([]ConflictSummary, 0, len(candidates)),
		TotalConflicts: len(candidates),
	}
	for _, c := range candidates {
		preview.WillAutoReject = append(preview.WillAutoReject, ConflictSummary{
			BookingID:  c.ID(),
			GuestName:  c.GuestName(),
			GuestEmail: c.GuestEmail(),
			CheckIn:    c.CheckIn(),
			CheckOut:   c.CheckOut(),
			Reason:     bookingDomain.AutoRejectReason,
		})
	}

	blocked, err := s.activeOverlap(ctx, s.store, target)
	if err != nil {
		return nil, err
	}
	if blocked {
		preview.Warning = "an approved booking already occupies these dates; approval will be refused"
	}

	return preview, nil
}

// ApproveBooking confirms the target booking and rejects every pending
// booking for the same property whose dates overlap it. All mutations happen
// in one transaction under the per-property lock.
func (s *ApprovalService) ApproveBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	target, err := s.store.Bookings().FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	acquired, err := s.lock.Acquire(ctx, target.PropertyID(), s.lockTTL)
	if err != nil {
		// Lock store outage degrades to optimistic locking on the rows.
		s.logger.Warn("approval lock unavailable, proceeding without it",
			zap.String("property_id", target.PropertyID().String()), zap.Error(err))
	} else if !acquired {
		return nil, domain.NewConflictError("another approval is in progress for this property")
	} else {
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), target.PropertyID()); err != nil {
				s.logger.Warn("failed to release approval lock",
					zap.String("property_id", target.PropertyID().String()), zap.Error(err))
			}
		}()
	}

	var (
		confirmed *bookingDomain.Booking
		rejected  []*bookingDomain.Booking
	)

	err = s.store.WithinTx(ctx, func(tx Store) error {
		current, err := tx.Bookings().FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if current.Status() != bookingDomain.StatusPending {
			return domain.NewInvalidStateError(string(current.Status()), string(bookingDomain.StatusConfirmed))
		}

		blocked, err := s.activeOverlap(ctx, tx, current)
		if err != nil {
			return err
		}
		if blocked {
			return domain.NewConflictError("an approved booking already occupies these dates")
		}

		candidates, err := s.conflictCandidates(ctx, tx, current)
		if err != nil {
			return err
		}

		now := s.clock()
		for _, c := range candidates {
			if err := c.Reject(bookingDomain.AutoRejectReason, now); err != nil {
				return err
			}
			c.IncrementVersion()
			if err := tx.Bookings().Update(ctx, c); err != nil {
				return err
			}
			rejected = append(rejected, c)
		}

		if err := current.Confirm(now); err != nil {
			return err
		}
		current.IncrementVersion()
		if err := tx.Bookings().Update(ctx, current); err != nil {
			return err
		}
		confirmed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking approved",
		zap.String("booking_id", confirmed.ID().String()),
		zap.Int("auto_rejected", len(rejected)),
	)

	if err := s.publisher.BookingConfirmed(ctx, confirmed); err != nil {
		s.logger.Warn("failed to publish booking confirmed event",
			zap.String("booking_id", confirmed.ID().String()), zap.Error(err))
	}
	for _, r := range rejected {
		if err := s.publisher.BookingRejected(ctx, r); err != nil {
			s.logger.Warn("failed to publish booking rejected event",
				zap.String("booking_id", r.ID().String()), zap.Error(err))
		}
	}

	dto := toBookingDTO(confirmed)
	return &dto, nil
}
