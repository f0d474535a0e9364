package application

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stayplace/service-booking/internal/domain"
	bookingDomain "github.com/stayplace/service-booking/internal/domain/booking"
	promoDomain "github.com/stayplace/service-booking/internal/domain/promotion"
)

// currentBooking reads a booking's persisted state back from the store.
func currentBooking(t *testing.T, store *fakeStore, id uuid.UUID) *bookingDomain.Booking {
	t.Helper()
	b, err := store.bookings.FindByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

// currentPromotion reads a promotion's persisted state back from the store.
func currentPromotion(t *testing.T, store *fakeStore, id uuid.UUID) *promoDomain.Promotion {
	t.Helper()
	p, err := store.promos.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

// fakeStore is an in-memory Store for unit tests. WithinTx runs the callback
// against the same state; transactional rollback is covered by the
// repository integration tests.
type fakeStore struct {
	bookings *fakeBookingRepo
	promos   *fakePromotionRepo
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: &fakeBookingRepo{items: map[uuid.UUID]*bookingDomain.Booking{}},
		promos: &fakePromotionRepo{
			promotions: map[uuid.UUID]*promoDomain.Promotion{},
			grants:     map[uuid.UUID]*promoDomain.Grant{},
			usages:     map[uuid.UUID]*promoDomain.Usage{},
		},
	}
}

func (s *fakeStore) Bookings() bookingDomain.Repository  { return s.bookings }
func (s *fakeStore) Promotions() promoDomain.Repository  { return s.promos }
func (s *fakeStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(s)
}

type fakeBookingRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*bookingDomain.Booking

	// updateErr, when set, is consulted before every Update.
	updateErr func(id uuid.UUID) error
}

// cloneBooking mirrors a real repository handing out a fresh aggregate per
// read: mutations on a returned booking reach the store only through Update.
func cloneBooking(b *bookingDomain.Booking) *bookingDomain.Booking {
	var confirmedAt, cancelledAt *time.Time
	if t := b.ConfirmedAt(); t != nil {
		v := *t
		confirmedAt = &v
	}
	if t := b.CancelledAt(); t != nil {
		v := *t
		cancelledAt = &v
	}
	return bookingDomain.Reconstitute(
		b.ID(), b.GuestID(), b.PropertyID(),
		b.GuestName(), b.GuestEmail(),
		b.CheckIn(), b.CheckOut(),
		b.Status(),
		b.Adults(), b.Children(),
		b.TotalPrice(),
		b.PromotionCode(), b.Notes(),
		confirmedAt, cancelledAt,
		b.CancelledBy(), b.CancelReason(),
		b.Version(),
		b.CreatedAt(), b.UpdatedAt(),
	)
}

func (r *fakeBookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	return cloneBooking(b), nil
}

func (r *fakeBookingRepo) FindOverlapping(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time, statuses []bookingDomain.Status) ([]*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.items {
		if b.PropertyID() != propertyID || !b.Overlaps(checkIn, checkOut) {
			continue
		}
		for _, st := range statuses {
			if b.Status() == st {
				out = append(out, cloneBooking(b))
				break
			}
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) FindPaidCheckedOutBefore(ctx context.Context, threshold time.Time) ([]*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.items {
		if b.Status() == bookingDomain.StatusPaid && b.CheckOut().Before(threshold) {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) FindConfirmedBefore(ctx context.Context, threshold time.Time) ([]*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.items {
		if b.Status() == bookingDomain.StatusConfirmed && b.ConfirmedAt() != nil && b.ConfirmedAt().Before(threshold) {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	for _, b := range r.items {
		counts[string(b.Status())]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) Save(ctx context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[b.ID()] = b
	return nil
}

func (r *fakeBookingRepo) Update(ctx context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		if err := r.updateErr(b.ID()); err != nil {
			return err
		}
	}
	if _, ok := r.items[b.ID()]; !ok {
		return domain.NewNotFoundError("booking", b.ID().String())
	}
	r.items[b.ID()] = b
	return nil
}

type fakePromotionRepo struct {
	mu         sync.Mutex
	promotions map[uuid.UUID]*promoDomain.Promotion
	grants     map[uuid.UUID]*promoDomain.Grant
	usages     map[uuid.UUID]*promoDomain.Usage

	// deleteUsageErr, when set, fails every DeleteUsage call.
	deleteUsageErr error
}

// Like cloneBooking, every read hands out a fresh copy so mutations reach the
// store only through the repository's write methods.
func clonePromotion(p *promoDomain.Promotion) *promoDomain.Promotion {
	return promoDomain.Reconstitute(
		p.ID(), p.Code(), p.DiscountType(),
		p.DiscountValue(), p.UsageLimit(), p.TimesUsed(),
		p.ValidFrom(), p.ValidUntil(), p.CreatedAt(), p.UpdatedAt(),
	)
}

func cloneGrant(g *promoDomain.Grant) *promoDomain.Grant {
	return promoDomain.ReconstituteGrant(
		g.ID(), g.UserID(), g.PromotionID(),
		g.Status(), g.Locked(),
		g.AssignedAt(), g.ExpiresAt(), g.UpdatedAt(),
	)
}

func cloneUsage(u *promoDomain.Usage) *promoDomain.Usage {
	out := &promoDomain.Usage{
		ID:             u.ID,
		DiscountAmount: u.DiscountAmount,
		UsedAt:         u.UsedAt,
	}
	if u.BookingID != nil {
		v := *u.BookingID
		out.BookingID = &v
	}
	if u.GrantID != nil {
		v := *u.GrantID
		out.GrantID = &v
	}
	return out
}

func (r *fakePromotionRepo) FindByCode(ctx context.Context, code string) (*promoDomain.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.promotions {
		if strings.EqualFold(p.Code(), code) {
			return clonePromotion(p), nil
		}
	}
	return nil, domain.NewNotFoundError("promotion", code)
}

func (r *fakePromotionRepo) FindByID(ctx context.Context, id uuid.UUID) (*promoDomain.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promotions[id]
	if !ok {
		return nil, domain.NewNotFoundError("promotion", id.String())
	}
	return clonePromotion(p), nil
}

func (r *fakePromotionRepo) Save(ctx context.Context, p *promoDomain.Promotion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promotions[p.ID()] = p
	return nil
}

func (r *fakePromotionRepo) Update(ctx context.Context, p *promoDomain.Promotion) error {
	return r.Save(ctx, p)
}

func (r *fakePromotionRepo) FindUsableGrant(ctx context.Context, userID, promotionID uuid.UUID, now time.Time) (*promoDomain.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.grants {
		if g.UserID() == userID && g.PromotionID() == promotionID && g.IsUsable(now) {
			return cloneGrant(g), nil
		}
	}
	return nil, domain.NewNotFoundError("grant", userID.String())
}

func (r *fakePromotionRepo) FindGrantByID(ctx context.Context, id uuid.UUID) (*promoDomain.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[id]
	if !ok {
		return nil, domain.NewNotFoundError("grant", id.String())
	}
	return cloneGrant(g), nil
}

func (r *fakePromotionRepo) SaveGrant(ctx context.Context, g *promoDomain.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[g.ID()] = g
	return nil
}

func (r *fakePromotionRepo) UpdateGrant(ctx context.Context, g *promoDomain.Grant) error {
	return r.SaveGrant(ctx, g)
}

func (r *fakePromotionRepo) FindLiveUsageByBooking(ctx context.Context, bookingID uuid.UUID) (*promoDomain.Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.usages {
		if u.BookingID != nil && *u.BookingID == bookingID {
			return cloneUsage(u), nil
		}
	}
	return nil, domain.NewNotFoundError("promotion usage", bookingID.String())
}

func (r *fakePromotionRepo) SaveUsage(ctx context.Context, u *promoDomain.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usages[u.ID] = u
	return nil
}

func (r *fakePromotionRepo) DeleteUsage(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteUsageErr != nil {
		return r.deleteUsageErr
	}
	delete(r.usages, id)
	return nil
}

func (r *fakePromotionRepo) UnlinkUsage(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.usages[id]; ok {
		u.BookingID = nil
		u.GrantID = nil
	}
	return nil
}

// fakePublisher records published events by type.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) record(event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakePublisher) BookingConfirmed(ctx context.Context, b *bookingDomain.Booking) error {
	return p.record("confirmed")
}
func (p *fakePublisher) BookingRejected(ctx context.Context, b *bookingDomain.Booking) error {
	return p.record("rejected")
}
func (p *fakePublisher) BookingCancelled(ctx context.Context, b *bookingDomain.Booking) error {
	return p.record("cancelled")
}
func (p *fakePublisher) BookingPaid(ctx context.Context, b *bookingDomain.Booking) error {
	return p.record("paid")
}
func (p *fakePublisher) BookingCompleted(ctx context.Context, b *bookingDomain.Booking) error {
	return p.record("completed")
}

// fakeLock is an always-available ApprovalLock unless configured otherwise.
type fakeLock struct {
	mu       sync.Mutex
	held     bool
	denied   bool
	err      error
	acquires int
	releases int
}

func (l *fakeLock) Acquire(ctx context.Context, propertyID uuid.UUID, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.err != nil {
		return false, l.err
	}
	if l.denied || l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context, propertyID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
	l.held = false
	return nil
}
