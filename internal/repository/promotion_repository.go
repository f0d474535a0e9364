package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stayplace/service-booking/internal/domain"
	promoDomain "github.com/stayplace/service-booking/internal/domain/promotion"
)

// PromotionModel is the GORM model for the promotions table.
type PromotionModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Code          string          `gorm:"type:varchar(50);uniqueIndex;not null"`
	DiscountType  string          `gorm:"type:varchar(20);not null"`
	DiscountValue decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	UsageLimit    int             `gorm:"not null;default:0"`
	TimesUsed     int             `gorm:"not null;default:0"`
	ValidFrom     time.Time       `gorm:"type:timestamptz;not null"`
	ValidUntil    time.Time       `gorm:"type:timestamptz;not null"`
	CreatedAt     time.Time       `gorm:"type:timestamptz;not null"`
	UpdatedAt     time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (PromotionModel) TableName() string { return "promotions" }

// GrantModel is the GORM model for the user_promotion_grants table.
type GrantModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	PromotionID uuid.UUID `gorm:"type:uuid;not null;index"`
	Status      string    `gorm:"type:varchar(20);not null;default:'active'"`
	Locked      bool      `gorm:"not null;default:false"`
	AssignedAt  time.Time `gorm:"type:timestamptz;not null"`
	ExpiresAt   time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (GrantModel) TableName() string { return "user_promotion_grants" }

// UsageModel is the GORM model for the promotion_usages table. Foreign
// references are nullable so they can be unlinked before the row is deleted
// on refund.
type UsageModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingID      *uuid.UUID      `gorm:"type:uuid;index"`
	GrantID        *uuid.UUID      `gorm:"type:uuid;index"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	UsedAt         time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (UsageModel) TableName() string { return "promotion_usages" }

// PromotionRepository implements the promotion repository contract with GORM.
type PromotionRepository struct {
	db *gorm.DB
}

// NewPromotionRepository creates a GORM-based promotion repository.
func NewPromotionRepository(db *gorm.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// FindByCode returns a promotion by its code string.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promoDomain.Promotion, error) {
	var model PromotionModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Promotion", code)
		}
		return nil, err
	}
	return toPromotionDomain(&model), nil
}

// FindByID returns a promotion by ID.
func (r *PromotionRepository) FindByID(ctx context.Context, id uuid.UUID) (*promoDomain.Promotion, error) {
	var model PromotionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Promotion", id.String())
		}
		return nil, err
	}
	return toPromotionDomain(&model), nil
}

// Save persists a new promotion.
func (r *PromotionRepository) Save(ctx context.Context, p *promoDomain.Promotion) error {
	model := toPromotionModel(p)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Update persists changes to a promotion.
func (r *PromotionRepository) Update(ctx context.Context, p *promoDomain.Promotion) error {
	model := toPromotionModel(p)
	return r.db.WithContext(ctx).
		Model(&PromotionModel{}).
		Where("id = ?", model.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(&model).Error
}

// FindUsableGrant returns the user's active, unlocked grant for a promotion
// whose expiry lies after now. Expiry is evaluated against the caller's clock
// rather than the database's.
func (r *PromotionRepository) FindUsableGrant(ctx context.Context, userID, promotionID uuid.UUID, now time.Time) (*promoDomain.Grant, error) {
	var model GrantModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND promotion_id = ?", userID, promotionID).
		Where("status = ? AND locked = false", string(promoDomain.GrantStatusActive)).
		Where("expires_at > ?", now).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Grant", promotionID.String())
		}
		return nil, err
	}
	return toGrantDomain(&model), nil
}

// FindGrantByID returns a grant by ID.
func (r *PromotionRepository) FindGrantByID(ctx context.Context, id uuid.UUID) (*promoDomain.Grant, error) {
	var model GrantModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Grant", id.String())
		}
		return nil, err
	}
	return toGrantDomain(&model), nil
}

// SaveGrant persists a new grant.
func (r *PromotionRepository) SaveGrant(ctx context.Context, g *promoDomain.Grant) error {
	model := toGrantModel(g)
	return r.db.WithContext(ctx).Create(&model).Error
}

// UpdateGrant persists changes to a grant.
func (r *PromotionRepository) UpdateGrant(ctx context.Context, g *promoDomain.Grant) error {
	model := toGrantModel(g)
	return r.db.WithContext(ctx).
		Model(&GrantModel{}).
		Where("id = ?", model.ID).
		Select("*").
		Omit("id").
		Updates(&model).Error
}

// FindLiveUsageByBooking returns the live usage record for a booking.
func (r *PromotionRepository) FindLiveUsageByBooking(ctx context.Context, bookingID uuid.UUID) (*promoDomain.Usage, error) {
	var model UsageModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PromotionUsage", bookingID.String())
		}
		return nil, err
	}
	return &promoDomain.Usage{
		ID:             model.ID,
		BookingID:      model.BookingID,
		GrantID:        model.GrantID,
		DiscountAmount: model.DiscountAmount,
		UsedAt:         model.UsedAt,
	}, nil
}

// SaveUsage persists a usage record.
func (r *PromotionRepository) SaveUsage(ctx context.Context, u *promoDomain.Usage) error {
	model := UsageModel{
		ID:             u.ID,
		BookingID:      u.BookingID,
		GrantID:        u.GrantID,
		DiscountAmount: u.DiscountAmount,
		UsedAt:         u.UsedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// UnlinkUsage nulls both foreign references on a usage record.
func (r *PromotionRepository) UnlinkUsage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&UsageModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"booking_id": nil, "grant_id": nil}).Error
}

// DeleteUsage removes a usage record.
func (r *PromotionRepository) DeleteUsage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&UsageModel{}, "id = ?", id).Error
}

func toPromotionModel(p *promoDomain.Promotion) PromotionModel {
	return PromotionModel{
		ID:            p.ID(),
		Code:          p.Code(),
		DiscountType:  string(p.DiscountType()),
		DiscountValue: p.DiscountValue(),
		UsageLimit:    p.UsageLimit(),
		TimesUsed:     p.TimesUsed(),
		ValidFrom:     p.ValidFrom(),
		ValidUntil:    p.ValidUntil(),
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}
}

func toPromotionDomain(m *PromotionModel) *promoDomain.Promotion {
	return promoDomain.Reconstitute(
		m.ID, m.Code, promoDomain.DiscountType(m.DiscountType),
		m.DiscountValue, m.UsageLimit, m.TimesUsed,
		m.ValidFrom, m.ValidUntil, m.CreatedAt, m.UpdatedAt,
	)
}

func toGrantModel(g *promoDomain.Grant) GrantModel {
	return GrantModel{
		ID:          g.ID(),
		UserID:      g.UserID(),
		PromotionID: g.PromotionID(),
		Status:      string(g.Status()),
		Locked:      g.Locked(),
		AssignedAt:  g.AssignedAt(),
		ExpiresAt:   g.ExpiresAt(),
		UpdatedAt:   g.UpdatedAt(),
	}
}

func toGrantDomain(m *GrantModel) *promoDomain.Grant {
	return promoDomain.ReconstituteGrant(
		m.ID, m.UserID, m.PromotionID,
		promoDomain.GrantStatus(m.Status), m.Locked,
		m.AssignedAt, m.ExpiresAt, m.UpdatedAt,
	)
}
