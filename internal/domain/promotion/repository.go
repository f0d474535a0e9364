package promotion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Usage is a single consumption record linking one grant to one booking. At
// most one live usage exists per booking. Both references go nullable before
// the row is deleted on refund.
type Usage struct {
	ID             uuid.UUID
	BookingID      *uuid.UUID
	GrantID        *uuid.UUID
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}

// Repository defines persistence operations for promotions, grants and
// usage records.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Promotion, error)
	Save(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error

	// FindUsableGrant returns the user's grant for a promotion that is still
	// usable as of now, or a not-found error when none exists.
	FindUsableGrant(ctx context.Context, userID, promotionID uuid.UUID, now time.Time) (*Grant, error)
	FindGrantByID(ctx context.Context, id uuid.UUID) (*Grant, error)
	SaveGrant(ctx context.Context, g *Grant) error
	UpdateGrant(ctx context.Context, g *Grant) error

	// FindLiveUsageByBooking returns the live usage for a booking, or a
	// not-found error when none exists.
	FindLiveUsageByBooking(ctx context.Context, bookingID uuid.UUID) (*Usage, error)
	SaveUsage(ctx context.Context, u *Usage) error
	// DeleteUsage removes a usage record after both references were nulled.
	DeleteUsage(ctx context.Context, id uuid.UUID) error
	// UnlinkUsage nulls both foreign references ahead of deletion.
	UnlinkUsage(ctx context.Context, id uuid.UUID) error
}
