package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stayplace/service-booking/internal/domain"
	bookingDomain "github.com/stayplace/service-booking/internal/domain/booking"
	promoDomain "github.com/stayplace/service-booking/internal/domain/promotion"
)

// PromotionPreview is the result of quoting a promotion against an amount.
type PromotionPreview struct {
	Valid          bool            `json:"valid"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Message        string          `json:"message,omitempty"`
}

// PromotionLedger is the single authority over promotion consumption and
// refund. Promotion.timesUsed and grant status are mutated here and nowhere
// else.
type PromotionLedger struct {
	store  Store
	clock  domain.Clock
	logger *zap.Logger
}

// NewPromotionLedger creates a ledger over the given store.
func NewPromotionLedger(store Store, clock domain.Clock, logger *zap.Logger) *PromotionLedger {
	return &PromotionLedger{store: store, clock: clock, logger: logger}
}

// Preview quotes a promotion code against an amount without mutating
// anything. Invalid codes come back as a non-valid preview, not an error.
func (l *PromotionLedger) Preview(ctx context.Context, code string, originalAmount decimal.Decimal) (*PromotionPreview, error) {
	promo, err := l.store.Promotions().FindByCode(ctx, code)
	if err != nil {
		if domain.IsNotFound(err) {
			return &PromotionPreview{Valid: false, Code: code, Message: "promotion code not found"}, nil
		}
		return nil, err
	}

	if !promo.IsActive(l.clock()) {
		return &PromotionPreview{Valid: false, Code: code, Message: "promotion is expired or fully used"}, nil
	}

	discount := promo.CalculateDiscount(originalAmount)
	return &PromotionPreview{
		Valid:          true,
		Code:           promo.Code(),
		DiscountAmount: discount,
		FinalAmount:    originalAmount.Sub(discount),
	}, nil
}

// Consume atomically marks the user's grant as used, increments the
// promotion counter and records a usage against the booking. The caller
// provides the transaction-scoped store the whole operation runs in.
func (l *PromotionLedger) Consume(ctx context.Context, tx Store, userID uuid.UUID, code string, bookingID uuid.UUID, originalAmount decimal.Decimal) (decimal.Decimal, error) {
	now := l.clock()

	promo, err := tx.Promotions().FindByCode(ctx, code)
	if err != nil {
		if domain.IsNotFound(err) {
			return decimal.Zero, domain.NewPromotionInvalidError("unknown promotion code: " + code)
		}
		return decimal.Zero, err
	}

	if !promo.IsActive(now) {
		return decimal.Zero, domain.NewPromotionInvalidError("promotion is expired or its usage limit is reached")
	}

	grant, err := tx.Promotions().FindUsableGrant(ctx, userID, promo.ID(), now)
	if err != nil {
		if domain.IsNotFound(err) {
			return decimal.Zero, domain.NewPromotionInvalidError("promotion is not available for this user")
		}
		return decimal.Zero, err
	}

	// At most one live usage per booking.
	if _, err := tx.Promotions().FindLiveUsageByBooking(ctx, bookingID); err == nil {
		return decimal.Zero, domain.NewConflictError("a promotion is already applied to this booking")
	} else if !domain.IsNotFound(err) {
		return decimal.Zero, err
	}

	discount := promo.CalculateDiscount(originalAmount)

	if err := grant.MarkUsed(now); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Promotions().UpdateGrant(ctx, grant); err != nil {
		return decimal.Zero, err
	}

	promo.IncrementUses(now)
	if err := tx.Promotions().Update(ctx, promo); err != nil {
		return decimal.Zero, err
	}

	grantID := grant.ID()
	usage := &promoDomain.Usage{
		ID:             uuid.New(),
		BookingID:      &bookingID,
		GrantID:        &grantID,
		DiscountAmount: discount,
		UsedAt:         now,
	}
	if err := tx.Promotions().SaveUsage(ctx, usage); err != nil {
		return decimal.Zero, err
	}

	l.logger.Info("promotion consumed",
		zap.String("code", promo.Code()),
		zap.String("booking_id", bookingID.String()),
		zap.String("discount", discount.String()),
	)
	return discount, nil
}

// Refund reverses a speculative consumption for a booking. It is idempotent:
// when no live usage exists it returns false without touching anything.
//
// Eligibility is gated on the booking's own status, not the grant's: a usage
// whose booking already reached paid (or completed) was legitimately
// consumed and stays permanent. Usages attached to bookings still short of
// paid were created ahead of payment confirmation and are reversible.
func (l *PromotionLedger) Refund(ctx context.Context, tx Store, bookingID uuid.UUID) (bool, error) {
	usage, err := tx.Promotions().FindLiveUsageByBooking(ctx, bookingID)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	b, err := tx.Bookings().FindByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if b.Status() == bookingDomain.StatusPaid || b.Status() == bookingDomain.StatusCompleted {
		l.logger.Info("refund skipped, booking payment is final",
			zap.String("booking_id", bookingID.String()),
			zap.String("status", string(b.Status())),
		)
		return false, nil
	}

	// The unlink may null the usage row's grant reference, so remember the
	// grant before touching the usage.
	var grantID *uuid.UUID
	if usage.GrantID != nil {
		v := *usage.GrantID
		grantID = &v
	}

	// Ordering guarantee: delete the usage, then release the grant, then
	// decrement the counter.
	if err := tx.Promotions().UnlinkUsage(ctx, usage.ID); err != nil {
		return false, err
	}
	if err := tx.Promotions().DeleteUsage(ctx, usage.ID); err != nil {
		return false, err
	}

	now := l.clock()

	if grantID != nil {
		grant, err := tx.Promotions().FindGrantByID(ctx, *grantID)
		if err != nil {
			return false, err
		}
		if err := grant.Release(now); err != nil {
			return false, err
		}
		if err := tx.Promotions().UpdateGrant(ctx, grant); err != nil {
			return false, err
		}

		promo, err := tx.Promotions().FindByID(ctx, grant.PromotionID())
		if err != nil {
			return false, err
		}
		promo.DecrementUses(now)
		if err := tx.Promotions().Update(ctx, promo); err != nil {
			return false, err
		}
	}

	l.logger.Info("promotion refunded",
		zap.String("booking_id", bookingID.String()),
		zap.String("discount", usage.DiscountAmount.String()),
	)
	return true, nil
}
