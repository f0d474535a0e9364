package promotion

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayplace/service-booking/internal/domain"
)

// DiscountType represents the type of discount.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// Promotion is the aggregate root for a promotional campaign. timesUsed moves
// only in lock-step with usage-record creation and deletion, through the
// ledger's consume/refund entry points.
type Promotion struct {
	id            uuid.UUID
	code          string
	discountType  DiscountType
	discountValue decimal.Decimal
	usageLimit    int
	timesUsed     int
	validFrom     time.Time
	validUntil    time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

// NewPromotion creates a promotion. A usageLimit of 0 means unlimited.
func NewPromotion(code string, discountType DiscountType, discountValue decimal.Decimal, usageLimit int, validFrom, validUntil time.Time) (*Promotion, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.NewValidationError("promotion code is required")
	}
	if discountType != DiscountTypePercentage && discountType != DiscountTypeFixed {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid discount type: %s", discountType))
	}
	if !discountValue.IsPositive() {
		return nil, domain.NewValidationError("discount value must be positive")
	}
	if discountType == DiscountTypePercentage && discountValue.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.NewValidationError("percentage discount cannot exceed 100")
	}
	if validUntil.Before(validFrom) {
		return nil, domain.NewValidationError("valid_until must be after valid_from")
	}

	now := time.Now().UTC()
	return &Promotion{
		id:            uuid.New(),
		code:          code,
		discountType:  discountType,
		discountValue: discountValue,
		usageLimit:    usageLimit,
		validFrom:     validFrom,
		validUntil:    validUntil,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// IsActive reports whether the promotion can be consumed at the given instant.
func (p *Promotion) IsActive(now time.Time) bool {
	if now.Before(p.validFrom) || now.After(p.validUntil) {
		return false
	}
	return p.usageLimit == 0 || p.timesUsed < p.usageLimit
}

// CalculateDiscount computes the discount against an original amount.
// The discount never exceeds the amount itself.
func (p *Promotion) CalculateDiscount(originalAmount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch p.discountType {
	case DiscountTypePercentage:
		discount = originalAmount.Mul(p.discountValue).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountTypeFixed:
		discount = p.discountValue
	}
	if discount.GreaterThan(originalAmount) {
		discount = originalAmount
	}
	return discount
}

// IncrementUses records one consumption.
func (p *Promotion) IncrementUses(now time.Time) {
	p.timesUsed++
	p.updatedAt = now
}

// DecrementUses reverses one consumption, flooring at zero.
func (p *Promotion) DecrementUses(now time.Time) {
	if p.timesUsed > 0 {
		p.timesUsed--
	}
	p.updatedAt = now
}

// --- Getters ---

func (p *Promotion) ID() uuid.UUID                  { return p.id }
func (p *Promotion) Code() string                   { return p.code }
func (p *Promotion) DiscountType() DiscountType     { return p.discountType }
func (p *Promotion) DiscountValue() decimal.Decimal { return p.discountValue }
func (p *Promotion) UsageLimit() int                { return p.usageLimit }
func (p *Promotion) TimesUsed() int                 { return p.timesUsed }
func (p *Promotion) ValidFrom() time.Time           { return p.validFrom }
func (p *Promotion) ValidUntil() time.Time          { return p.validUntil }
func (p *Promotion) CreatedAt() time.Time           { return p.createdAt }
func (p *Promotion) UpdatedAt() time.Time           { return p.updatedAt }

// Reconstitute rebuilds a Promotion from persistence.
func Reconstitute(id uuid.UUID, code string, discountType DiscountType, discountValue decimal.Decimal, usageLimit, timesUsed int, validFrom, validUntil, createdAt, updatedAt time.Time) *Promotion {
	return &Promotion{
		id: id, code: code, discountType: discountType, discountValue: discountValue,
		usageLimit: usageLimit, timesUsed: timesUsed,
		validFrom: validFrom, validUntil: validUntil,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}
