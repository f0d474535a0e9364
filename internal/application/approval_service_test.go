package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stayplace/service-booking/internal/domain"
	bookingDomain "github.com/stayplace/service-booking/internal/domain/booking"
)

func day(d int) time.Time {
	return time.Date(2026, 6, d, 14, 0, 0, 0, time.UTC)
}

func seedPending(t *testing.T, store *fakeStore, propertyID uuid.UUID, checkIn, checkOut time.Time) *bookingDomain.Booking {
	t.Helper()
	b, err := bookingDomain.NewBooking(uuid.New(), propertyID, "Ada Guest", "ada@example.com",
		checkIn, checkOut, 2, 0, decimal.NewFromInt(500), "", "", testNow)
	require.NoError(t, err)
	require.NoError(t, store.bookings.Save(context.Background(), b))
	return b
}

func newApprovalService(store *fakeStore, lock ApprovalLock, pub EventPublisher) *ApprovalService {
	return NewApprovalService(store, lock, 30*time.Second, pub, fixedClock, zap.NewNop())
}

func TestApprovalService_PreviewApproval(t *testing.T) {
	store := newFakeStore()
	svc := newApprovalService(store, &fakeLock{}, &fakePublisher{})
	propertyID := uuid.New()

	target := seedPending(t, store, propertyID, day(1), day(5))
	overlapping := seedPending(t, store, propertyID, day(4), day(8))
	seedPending(t, store, propertyID, day(5), day(9))     // back-to-back, no conflict
	seedPending(t, store, uuid.New(), day(2), day(6))     // other property

	preview, err := svc.PreviewApproval(context.Background(), target.ID())
	require.NoError(t, err)

	assert.Equal(t, 1, preview.TotalConflicts)
	require.Len(t, preview.WillAutoReject, 1)
	assert.Equal(t, overlapping.ID(), preview.WillAutoReject[0].BookingID)
	assert.Equal(t, "Ada Guest", preview.WillAutoReject[0].GuestName)
	assert.Empty(t, preview.Warning)

	// Preview must not mutate anything.
	assert.Equal(t, bookingDomain.StatusPending, currentBooking(t, store, target.ID()).Status())
	assert.Equal(t, bookingDomain.StatusPending, currentBooking(t, store, overlapping.ID()).Status())
}

func TestApprovalService_PreviewWarnsOnActiveOverlap(t *testing.T) {
	store := newFakeStore()
	svc := newApprovalService(store, &fakeLock{}, &fakePublisher{})
	propertyID := uuid.New()

	target := seedPending(t, store, propertyID, day(1), day(5))
	confirmed := seedPending(t, store, propertyID, day(3), day(7))
	require.NoError(t, confirmed.Confirm(testNow))

	preview, err := svc.PreviewApproval(context.Background(), target.ID())
	require.NoError(t, err)
	assert.NotEmpty(t, preview.Warning)
	assert.Zero(t, preview.TotalConflicts, "confirmed bookings are not auto-reject candidates")
}

func TestApprovalService_ApproveBooking(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	lock := &fakeLock{}
	svc := newApprovalService(store, lock, pub)
	propertyID := uuid.New()

	target := seedPending(t, store, propertyID, day(1), day(5))
	overlapping := seedPending(t, store, propertyID, day(4), day(8))
	backToBack := seedPending(t, store, propertyID, day(5), day(9))

	// Apply must match what the preview showed.
	preview, err := svc.PreviewApproval(context.Background(), target.ID())
	require.NoError(t, err)
	require.Equal(t, 1, preview.TotalConflicts)

	dto, err := svc.ApproveBooking(context.Background(), target.ID())
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusConfirmed), dto.Status)
	require.NotNil(t, dto.ConfirmedAt)

	rejected := currentBooking(t, store, overlapping.ID())
	assert.Equal(t, bookingDomain.StatusRejected, rejected.Status())
	assert.Equal(t, bookingDomain.AutoRejectReason, rejected.CancelReason())
	assert.Equal(t, bookingDomain.StatusPending, currentBooking(t, store, backToBack.ID()).Status())

	assert.Equal(t, []string{"confirmed", "rejected"}, pub.published())
	assert.Equal(t, 1, lock.releases, "lock is released after approval")
}

func TestApprovalService_ApproveRefusedOnActiveOverlap(t *testing.T) {
	store := newFakeStore()
	svc := newApprovalService(store, &fakeLock{}, &fakePublisher{})
	propertyID := uuid.New()

	target := seedPending(t, store, propertyID, day(1), day(5))
	confirmed := seedPending(t, store, propertyID, day(3), day(7))
	require.NoError(t, confirmed.Confirm(testNow))

	_, err := svc.ApproveBooking(context.Background(), target.ID())
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, bookingDomain.StatusPending, currentBooking(t, store, target.ID()).Status())
}

func TestApprovalService_ApproveNonPending(t *testing.T) {
	store := newFakeStore()
	svc := newApprovalService(store, &fakeLock{}, &fakePublisher{})

	target := seedPending(t, store, uuid.New(), day(1), day(5))
	require.NoError(t, target.Cancel(bookingDomain.CancelledByGuest, "changed mind", testNow))

	_, err := svc.ApproveBooking(context.Background(), target.ID())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestApprovalService_LockContention(t *testing.T) {
	store := newFakeStore()
	lock := &fakeLock{denied: true}
	svc := newApprovalService(store, lock, &fakePublisher{})

	target := seedPending(t, store, uuid.New(), day(1), day(5))

	_, err := svc.ApproveBooking(context.Background(), target.ID())
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, bookingDomain.StatusPending, currentBooking(t, store, target.ID()).Status())
}

func TestApprovalService_LockOutageDegrades(t *testing.T) {
	store := newFakeStore()
	lock := &fakeLock{err: errors.New("redis down")}
	svc := newApprovalService(store, lock, &fakePublisher{})

	target := seedPending(t, store, uuid.New(), day(1), day(5))

	dto, err := svc.ApproveBooking(context.Background(), target.ID())
	require.NoError(t, err, "lock store outage must not block approvals")
	assert.Equal(t, string(bookingDomain.StatusConfirmed), dto.Status)
}
