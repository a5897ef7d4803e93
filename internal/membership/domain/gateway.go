package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Catalog lists the plans offered by the backend.
type Catalog interface {
	ListPlans(ctx context.Context) ([]Plan, error)
}

// MembershipReader fetches the signed-in user's membership record.
// A nil result with a nil error means the user holds no membership.
type MembershipReader interface {
	CurrentMembership(ctx context.Context) (*Membership, error)
}

// CheckoutRequest asks the server for a payment checkout session.
type CheckoutRequest struct {
	PlanID     string
	SuccessURL string
	CancelURL  string
	// SwitchFromPlanID annotates a confirmed plan switch. Empty otherwise.
	SwitchFromPlanID string
}

// CheckoutSession is the server's answer to a CheckoutRequest.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// CheckoutVerification is the post-redirect confirmation payload.
type CheckoutVerification struct {
	SessionID     string
	Status        string
	PaymentStatus string
	Confirmed     bool
	Membership    *Membership
}

// CheckoutGateway creates and verifies checkout sessions.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	VerifyCheckoutSession(ctx context.Context, sessionID string) (*CheckoutVerification, error)
}

// LifecycleGateway issues cancellation and reactivation requests.
// Both return only an acknowledgement; callers re-read the record.
type LifecycleGateway interface {
	CancelMembership(ctx context.Context, atPeriodEnd bool) error
	ReactivateMembership(ctx context.Context) error
}

// MembershipCache holds the last membership read per user. Commands
// invalidate entries; they never write a locally computed record.
type MembershipCache interface {
	// Get returns the cached record and whether an entry was present.
	// A present entry may hold a nil membership.
	Get(ctx context.Context, userID uuid.UUID) (*Membership, bool, error)
	Set(ctx context.Context, userID uuid.UUID, m *Membership, ttl time.Duration) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}
