package domain

import (
	"time"

	"github.com/google/uuid"
)

// MembershipStatus mirrors the billing state reported by the server.
type MembershipStatus string

const (
	StatusActive     MembershipStatus = "active"
	StatusCancelled  MembershipStatus = "cancelled"
	StatusPastDue    MembershipStatus = "past_due"
	StatusUnpaid     MembershipStatus = "unpaid"
	StatusIncomplete MembershipStatus = "incomplete"
)

// Membership is the server-authoritative subscription record. The client
// never constructs or mutates one; it only reads them back from the API.
type Membership struct {
	ID                 string
	UserID             uuid.UUID
	PlanID             string
	Status             MembershipStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CancelledAt        *time.Time
}

// Lifecycle is the client-observed position in the membership state machine.
type Lifecycle string

const (
	LifecycleNone          Lifecycle = "none"
	LifecycleActive        Lifecycle = "active"
	LifecyclePendingCancel Lifecycle = "pending_cancel"
	LifecycleCancelled     Lifecycle = "cancelled"
	LifecycleInactive      Lifecycle = "inactive"
)

// IsActive reports whether the server considers the membership active.
func (m *Membership) IsActive() bool {
	return m != nil && m.Status == StatusActive
}

// BlocksNewSubscription reports whether a new checkout would collide with a
// paying membership. A membership already scheduled to cancel does not block.
func (m *Membership) BlocksNewSubscription() bool {
	return m.IsActive() && !m.CancelAtPeriodEnd
}

// CanCancel reports whether a cancellation request is meaningful. A
// membership already scheduled to end can still be cancelled immediately.
func (m *Membership) CanCancel(atPeriodEnd bool) bool {
	return m.IsActive() && (!m.CancelAtPeriodEnd || !atPeriodEnd)
}

// CanReactivate reports whether a pending cancellation can still be undone.
func (m *Membership) CanReactivate(now time.Time) bool {
	if m == nil || !m.CancelAtPeriodEnd || m.Status != StatusActive {
		return false
	}
	if m.CurrentPeriodEnd.IsZero() {
		return true
	}
	return now.Before(m.CurrentPeriodEnd)
}

// Lifecycle derives the observed lifecycle position.
func (m *Membership) Lifecycle() Lifecycle {
	if m == nil {
		return LifecycleNone
	}
	switch m.Status {
	case StatusActive:
		if m.CancelAtPeriodEnd {
			return LifecyclePendingCancel
		}
		return LifecycleActive
	case StatusCancelled:
		return LifecycleCancelled
	default:
		return LifecycleInactive
	}
}

// Clone returns a deep copy so snapshots can be handed out safely.
func (m *Membership) Clone() *Membership {
	if m == nil {
		return nil
	}
	c := *m
	if m.CancelledAt != nil {
		t := *m.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
