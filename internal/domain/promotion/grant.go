package promotion

import (
	"time"

	"github.com/google/uuid"

	"github.com/stayplace/service-booking/internal/domain"
)

// GrantStatus represents the state of a user's promotion grant.
type GrantStatus string

const (
	GrantStatusActive  GrantStatus = "active"
	GrantStatusUsed    GrantStatus = "used"
	GrantStatusExpired GrantStatus = "expired"
)

// Grant is a promotion allotted to a specific user. Invariant: status used
// implies locked with exactly one live usage referencing the grant; status
// active implies unlocked with no live usage.
type Grant struct {
	id          uuid.UUID
	userID      uuid.UUID
	promotionID uuid.UUID
	status      GrantStatus
	locked      bool
	assignedAt  time.Time
	expiresAt   time.Time
	updatedAt   time.Time
}

// NewGrant assigns a promotion to a user.
func NewGrant(userID, promotionID uuid.UUID, assignedAt, expiresAt time.Time) *Grant {
	return &Grant{
		id:          uuid.New(),
		userID:      userID,
		promotionID: promotionID,
		status:      GrantStatusActive,
		assignedAt:  assignedAt,
		expiresAt:   expiresAt,
		updatedAt:   assignedAt,
	}
}

// IsUsable reports whether the grant can back a new consumption.
func (g *Grant) IsUsable(now time.Time) bool {
	return g.status == GrantStatusActive && !g.locked && now.Before(g.expiresAt)
}

// MarkUsed locks the grant against a consumption.
func (g *Grant) MarkUsed(now time.Time) error {
	if g.status != GrantStatusActive || g.locked {
		return domain.NewInvalidStateError(string(g.status), string(GrantStatusUsed))
	}
	g.status = GrantStatusUsed
	g.locked = true
	g.updatedAt = now
	return nil
}

// Release returns a speculatively-used grant to active. The ledger calls this
// only after the linked usage record has been deleted.
func (g *Grant) Release(now time.Time) error {
	if g.status != GrantStatusUsed {
		return domain.NewInvalidStateError(string(g.status), string(GrantStatusActive))
	}
	g.status = GrantStatusActive
	g.locked = false
	g.updatedAt = now
	return nil
}

// --- Getters ---

func (g *Grant) ID() uuid.UUID          { return g.id }
func (g *Grant) UserID() uuid.UUID      { return g.userID }
func (g *Grant) PromotionID() uuid.UUID { return g.promotionID }
func (g *Grant) Status() GrantStatus    { return g.status }
func (g *Grant) Locked() bool           { return g.locked }
func (g *Grant) AssignedAt() time.Time  { return g.assignedAt }
func (g *Grant) ExpiresAt() time.Time   { return g.expiresAt }
func (g *Grant) UpdatedAt() time.Time   { return g.updatedAt }

// ReconstituteGrant rebuilds a Grant from persistence.
func ReconstituteGrant(id, userID, promotionID uuid.UUID, status GrantStatus, locked bool, assignedAt, expiresAt, updatedAt time.Time) *Grant {
	return &Grant{
		id: id, userID: userID, promotionID: promotionID,
		status: status, locked: locked,
		assignedAt: assignedAt, expiresAt: expiresAt, updatedAt: updatedAt,
	}
}
