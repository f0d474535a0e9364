package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayplace/service-booking/internal/domain"
)

// Status represents the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Actors recorded in cancelled_by.
const (
	CancelledBySystem = "system"
	CancelledByGuest  = "guest"
	CancelledByHost   = "host"
)

// AutoRejectReason is stamped on siblings rejected during approval.
const AutoRejectReason = "auto-rejected: conflicting approved booking"

// PaymentTimeoutReason is stamped by the payment-timeout reconciler.
const PaymentTimeoutReason = "cancelled: payment not received before deadline"

// Booking is the aggregate root for the reservation lifecycle. Status is
// mutated only through the transition methods below; nothing else in the
// codebase may assign it.
type Booking struct {
	id            uuid.UUID
	guestID       uuid.UUID
	propertyID    uuid.UUID
	guestName     string
	guestEmail    string
	checkIn       time.Time
	checkOut      time.Time
	status        Status
	adults        int
	children      int
	totalPrice    decimal.Decimal
	promotionCode string
	notes         string
	confirmedAt   *time.Time
	cancelledAt   *time.Time
	cancelledBy   string
	cancelReason  string
	version       int64
	createdAt     time.Time
	updatedAt     time.Time
}

// NewBooking creates a pending booking. Dates are half-open [checkIn, checkOut)
// and must be timezone-normalized by the caller.
func NewBooking(
	guestID, propertyID uuid.UUID,
	guestName, guestEmail string,
	checkIn, checkOut time.Time,
	adults, children int,
	totalPrice decimal.Decimal,
	promotionCode, notes string,
	now time.Time,
) (*Booking, error) {
	if guestID == uuid.Nil {
		return nil, domain.NewValidationError("guest is required")
	}
	if propertyID == uuid.Nil {
		return nil, domain.NewValidationError("property is required")
	}
	if checkIn.IsZero() || checkOut.IsZero() {
		return nil, domain.NewValidationError("check-in and check-out dates are required")
	}
	if !checkIn.Before(checkOut) {
		return nil, domain.NewValidationError("check-in must be before check-out")
	}
	if adults < 1 {
		return nil, domain.NewValidationError("at least one adult guest is required")
	}
	if children < 0 {
		return nil, domain.NewValidationError("children count cannot be negative")
	}
	if totalPrice.IsNegative() {
		return nil, domain.NewValidationError("total price cannot be negative")
	}

	return &Booking{
		id:            uuid.New(),
		guestID:       guestID,
		propertyID:    propertyID,
		guestName:     strings.TrimSpace(guestName),
		guestEmail:    strings.ToLower(strings.TrimSpace(guestEmail)),
		checkIn:       checkIn.UTC(),
		checkOut:      checkOut.UTC(),
		status:        StatusPending,
		adults:        adults,
		children:      children,
		totalPrice:    totalPrice,
		promotionCode: strings.ToUpper(strings.TrimSpace(promotionCode)),
		notes:         notes,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID               { return b.id }
func (b *Booking) GuestID() uuid.UUID          { return b.guestID }
func (b *Booking) PropertyID() uuid.UUID       { return b.propertyID }
func (b *Booking) GuestName() string           { return b.guestName }
func (b *Booking) GuestEmail() string          { return b.guestEmail }
func (b *Booking) CheckIn() time.Time          { return b.checkIn }
func (b *Booking) CheckOut() time.Time         { return b.checkOut }
func (b *Booking) Status() Status              { return b.status }
func (b *Booking) Adults() int                 { return b.adults }
func (b *Booking) Children() int               { return b.children }
func (b *Booking) TotalPrice() decimal.Decimal { return b.totalPrice }
func (b *Booking) PromotionCode() string       { return b.promotionCode }
func (b *Booking) Notes() string               { return b.notes }
func (b *Booking) ConfirmedAt() *time.Time     { return b.confirmedAt }
func (b *Booking) CancelledAt() *time.Time     { return b.cancelledAt }
func (b *Booking) CancelledBy() string         { return b.cancelledBy }
func (b *Booking) CancelReason() string        { return b.cancelReason }
func (b *Booking) Version() int64              { return b.version }
func (b *Booking) CreatedAt() time.Time        { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time        { return b.updatedAt }

// IsTerminal reports whether no further transition is defined for the booking.
func (b *Booking) IsTerminal() bool {
	return b.status == StatusCompleted || b.status == StatusRejected || b.status == StatusCancelled
}

// --- State transitions ---

// Confirm transitions pending -> confirmed on host approval. The caller must
// have verified that no confirmed or paid overlap exists for the property.
// confirmedAt anchors the payment deadline.
func (b *Booking) Confirm(now time.Time) error {
	if b.status != StatusPending {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	b.status = StatusConfirmed
	b.confirmedAt = &now
	b.updatedAt = now
	return nil
}

// Reject transitions pending -> rejected, either by explicit host action or
// automatically when a conflicting sibling is approved.
func (b *Booking) Reject(reason string, now time.Time) error {
	if b.status != StatusPending {
		return domain.NewInvalidStateError(string(b.status), string(StatusRejected))
	}
	b.status = StatusRejected
	b.cancelReason = reason
	b.updatedAt = now
	return nil
}

// MarkPaid transitions confirmed -> paid after a successful payment. Amount
// matching against the discounted total is the caller's guard.
func (b *Booking) MarkPaid(now time.Time) error {
	if b.status != StatusConfirmed {
		return domain.NewInvalidStateError(string(b.status), string(StatusPaid))
	}
	b.status = StatusPaid
	b.updatedAt = now
	return nil
}

// Complete transitions paid -> completed once the stay is over.
func (b *Booking) Complete(now time.Time) error {
	if b.status != StatusPaid {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	b.status = StatusCompleted
	b.updatedAt = now
	return nil
}

// Cancel transitions pending or confirmed -> cancelled. confirmedAt is
// cleared so that exactly one of confirmedAt/cancelledAt is set on a
// cancelled row.
func (b *Booking) Cancel(actor, reason string, now time.Time) error {
	if b.status != StatusPending && b.status != StatusConfirmed {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	b.status = StatusCancelled
	b.confirmedAt = nil
	b.cancelledAt = &now
	b.cancelledBy = actor
	b.cancelReason = reason
	b.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}

// PaymentDeadlineExceeded reports whether a confirmed booking has outlived
// its payment window at the given instant.
func (b *Booking) PaymentDeadlineExceeded(now time.Time, window time.Duration) bool {
	if b.status != StatusConfirmed || b.confirmedAt == nil {
		return false
	}
	return now.After(b.confirmedAt.Add(window))
}

// Overlaps reports whether the booking's half-open date range intersects
// [checkIn, checkOut). Back-to-back ranges sharing a boundary do not overlap.
func (b *Booking) Overlaps(checkIn, checkOut time.Time) bool {
	return b.checkIn.Before(checkOut) && checkIn.Before(b.checkOut)
}

// SelectConflicting returns the pending siblings of target that would be
// auto-rejected by approving it. Both the approval preview and the approval
// itself go through this single selection so what is shown is what gets
// rejected.
func SelectConflicting(target *Booking, candidates []*Booking) []*Booking {
	conflicts := make([]*Booking, 0, len(candidates))
	for _, c := range candidates {
		if c.id == target.id {
			continue
		}
		if c.status != StatusPending {
			continue
		}
		if !c.Overlaps(target.checkIn, target.checkOut) {
			continue
		}
		conflicts = append(conflicts, c)
	}
	return conflicts
}

// Reconstitute rebuilds a Booking from persisted data.
func Reconstitute(
	id, guestID, propertyID uuid.UUID,
	guestName, guestEmail string,
	checkIn, checkOut time.Time,
	status Status,
	adults, children int,
	totalPrice decimal.Decimal,
	promotionCode, notes string,
	confirmedAt, cancelledAt *time.Time,
	cancelledBy, cancelReason string,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:            id,
		guestID:       guestID,
		propertyID:    propertyID,
		guestName:     guestName,
		guestEmail:    guestEmail,
		checkIn:       checkIn,
		checkOut:      checkOut,
		status:        status,
		adults:        adults,
		children:      children,
		totalPrice:    totalPrice,
		promotionCode: promotionCode,
		notes:         notes,
		confirmedAt:   confirmedAt,
		cancelledAt:   cancelledAt,
		cancelledBy:   cancelledBy,
		cancelReason:  cancelReason,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}
