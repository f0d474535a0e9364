package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stayplace/service-booking/internal/domain"
	bookingDomain "github.com/stayplace/service-booking/internal/domain/booking"
)

// BookingModel is the GORM persistence model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	GuestID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	PropertyID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	GuestName     string          `gorm:"type:varchar(255)"`
	GuestEmail    string          `gorm:"type:varchar(255)"`
	CheckIn       time.Time       `gorm:"type:timestamptz;not null"`
	CheckOut      time.Time       `gorm:"type:timestamptz;not null"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	Adults        int             `gorm:"not null;default:1"`
	Children      int             `gorm:"not null;default:0"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PromotionCode string          `gorm:"type:varchar(50)"`
	Notes         string          `gorm:"type:text"`
	ConfirmedAt   *time.Time      `gorm:"type:timestamptz"`
	CancelledAt   *time.Time      `gorm:"type:timestamptz"`
	CancelledBy   string          `gorm:"type:varchar(20)"`
	CancelReason  string          `gorm:"type:text"`
	Version       int64           `gorm:"not null;default:1"`
	CreatedAt     time.Time       `gorm:"type:timestamptz;not null"`
	UpdatedAt     time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (BookingModel) TableName() string {
	return "bookings"
}

// BookingRepository is the GORM-based implementation of the booking
// repository contract.
type BookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository creates a GORM-based booking repository.
func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindByID retrieves a booking by its unique ID.
func (r *BookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, err
	}
	return toBookingDomain(&model), nil
}

// FindOverlapping retrieves bookings for the property whose half-open range
// intersects [checkIn, checkOut) with one of the given statuses.
func (r *BookingRepository) FindOverlapping(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time, statuses []bookingDomain.Status) ([]*bookingDomain.Booking, error) {
	strStatuses := make([]string, len(statuses))
	for i, s := range statuses {
		strStatuses[i] = string(s)
	}

	var models []BookingModel
	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Where("check_in < ? AND ? < check_out", checkOut, checkIn).
		Where("status IN ?", strStatuses).
		Order("check_in ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toBookingDomainSlice(models), nil
}

// FindPaidCheckedOutBefore retrieves paid bookings past their check-out.
func (r *BookingRepository) FindPaidCheckedOutBefore(ctx context.Context, threshold time.Time) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND check_out < ?", string(bookingDomain.StatusPaid), threshold).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toBookingDomainSlice(models), nil
}

// FindConfirmedBefore retrieves confirmed bookings confirmed before the threshold.
func (r *BookingRepository) FindConfirmedBefore(ctx context.Context, threshold time.Time) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND confirmed_at < ?", string(bookingDomain.StatusConfirmed), threshold).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toBookingDomainSlice(models), nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *BookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking aggregate.
func (r *BookingRepository) Save(ctx context.Context, b *bookingDomain.Booking) error {
	model := toBookingModel(b)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing booking with optimistic locking.
// Losing the version race surfaces as a conflict error; reconcilers skip and
// re-evaluate on the next cycle.
func (r *BookingRepository) Update(ctx context.Context, b *bookingDomain.Booking) error {
	model := toBookingModel(b)
	previousVersion := b.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// toBookingDomain maps a BookingModel to the domain Booking aggregate.
func toBookingDomain(m *BookingModel) *bookingDomain.Booking {
	return bookingDomain.Reconstitute(
		m.ID, m.GuestID, m.PropertyID,
		m.GuestName, m.GuestEmail,
		m.CheckIn, m.CheckOut,
		bookingDomain.Status(m.Status),
		m.Adults, m.Children,
		m.TotalPrice,
		m.PromotionCode, m.Notes,
		m.ConfirmedAt, m.CancelledAt,
		m.CancelledBy, m.CancelReason,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}

func toBookingDomainSlice(models []BookingModel) []*bookingDomain.Booking {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bookings[i] = toBookingDomain(&models[i])
	}
	return bookings
}

// toBookingModel maps a domain Booking aggregate to its persistence model.
func toBookingModel(b *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
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
		Version:       b.Version(),
		CreatedAt:     b.CreatedAt(),
		UpdatedAt:     b.UpdatedAt(),
	}
}
