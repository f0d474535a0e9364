package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/stayplace/service-booking/internal/application"
	"github.com/stayplace/service-booking/internal/domain/booking"
	"github.com/stayplace/service-booking/internal/domain/promotion"
)

// Store bundles the GORM repositories behind the application's unit-of-work
// contract. A Store created by WithinTx shares one transaction across all of
// its repositories.
type Store struct {
	db         *gorm.DB
	bookings   *BookingRepository
	promotions *PromotionRepository
}

// NewStore creates a store over a database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		bookings:   NewBookingRepository(db),
		promotions: NewPromotionRepository(db),
	}
}

// Bookings returns the booking repository bound to this store's handle.
func (s *Store) Bookings() booking.Repository { return s.bookings }

// Promotions returns the promotion repository bound to this store's handle.
func (s *Store) Promotions() promotion.Repository { return s.promotions }

// WithinTx runs fn against a transaction-scoped store. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(tx application.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(txdb *gorm.DB) error {
		return fn(NewStore(txdb))
	})
}

var _ application.Store = (*Store)(nil)
