package application

import (
	"context"

	"github.com/stayplace/service-booking/internal/domain/booking"
	"github.com/stayplace/service-booking/internal/domain/promotion"
)

// Store is the unit-of-work boundary over the repositories. WithinTx runs
// the function against a store whose repositories are scoped to one database
// transaction; returning an error rolls everything back.
//
// Each per-booking mutation gets its own WithinTx call. Reconcilers
// deliberately open one transaction per booking, never one for the whole
// batch, so one bad row cannot abort the rest.
type Store interface {
	Bookings() booking.Repository
	Promotions() promotion.Repository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
