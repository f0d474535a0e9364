package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for booking aggregates. All
// methods operate inside whatever transaction the supplied handle is scoped
// to; the repository holds no cross-call state.
type Repository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindOverlapping retrieves bookings for a property whose half-open date
	// range intersects [checkIn, checkOut) and whose status is one of the
	// given statuses.
	FindOverlapping(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time, statuses []Status) ([]*Booking, error)

	// FindPaidCheckedOutBefore retrieves paid bookings whose check-out lies
	// strictly before the threshold. Feed for the completion sweep.
	FindPaidCheckedOutBefore(ctx context.Context, threshold time.Time) ([]*Booking, error)

	// FindConfirmedBefore retrieves confirmed bookings whose confirmed-at lies
	// strictly before the threshold. Feed for the payment-timeout sweep.
	FindConfirmedBefore(ctx context.Context, threshold time.Time) ([]*Booking, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, b *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, b *Booking) error
}
