package domain

import (
	sharedDomain "github.com/felixgeelhaar/donora/internal/shared/domain"
	"github.com/google/uuid"
)

// AggregateType identifies membership events on the bus.
const AggregateType = "Membership"

// Routing keys for lifecycle requests. The events record what the client
// asked the server to do, never a state the client assumed.
const (
	RoutingKeyCheckoutRequested   = "membership.checkout.requested"
	RoutingKeySwitchRequested     = "membership.switch.requested"
	RoutingKeyCancelRequested     = "membership.cancel.requested"
	RoutingKeyReactivateRequested = "membership.reactivate.requested"
	RoutingKeyCheckoutVerified    = "membership.checkout.verified"
	RoutingKeyVerificationFailed  = "membership.checkout.verification_failed"
)

// CheckoutRequested is emitted after a checkout session was created.
type CheckoutRequested struct {
	sharedDomain.BaseEvent
	PlanID       string `json:"plan_id"`
	SessionID    string `json:"session_id,omitempty"`
	SwitchFromID string `json:"switch_from_plan_id,omitempty"`
}

// NewCheckoutRequested builds the event; a non-empty switchFrom marks a plan switch.
func NewCheckoutRequested(userID uuid.UUID, planID, sessionID, switchFrom string) *CheckoutRequested {
	key := RoutingKeyCheckoutRequested
	if switchFrom != "" {
		key = RoutingKeySwitchRequested
	}
	return &CheckoutRequested{
		BaseEvent:    sharedDomain.NewBaseEvent(userID, AggregateType, key),
		PlanID:       planID,
		SessionID:    sessionID,
		SwitchFromID: switchFrom,
	}
}

// CancelRequested is emitted after the server acknowledged a cancellation.
type CancelRequested struct {
	sharedDomain.BaseEvent
	MembershipID string `json:"membership_id"`
	AtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

// NewCancelRequested builds the event.
func NewCancelRequested(userID uuid.UUID, membershipID string, atPeriodEnd bool) *CancelRequested {
	return &CancelRequested{
		BaseEvent:    sharedDomain.NewBaseEvent(userID, AggregateType, RoutingKeyCancelRequested),
		MembershipID: membershipID,
		AtPeriodEnd:  atPeriodEnd,
	}
}

// ReactivateRequested is emitted after the server acknowledged a reactivation.
type ReactivateRequested struct {
	sharedDomain.BaseEvent
	MembershipID string `json:"membership_id"`
}

// NewReactivateRequested builds the event.
func NewReactivateRequested(userID uuid.UUID, membershipID string) *ReactivateRequested {
	return &ReactivateRequested{
		BaseEvent:    sharedDomain.NewBaseEvent(userID, AggregateType, RoutingKeyReactivateRequested),
		MembershipID: membershipID,
	}
}

// CheckoutVerified records the outcome of a post-redirect verification.
type CheckoutVerified struct {
	sharedDomain.BaseEvent
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// NewCheckoutVerified builds a verified or verification_failed event.
func NewCheckoutVerified(userID uuid.UUID, sessionID, status string, ok bool) *CheckoutVerified {
	key := RoutingKeyCheckoutVerified
	if !ok {
		key = RoutingKeyVerificationFailed
	}
	return &CheckoutVerified{
		BaseEvent: sharedDomain.NewBaseEvent(userID, AggregateType, key),
		SessionID: sessionID,
		Status:    status,
	}
}
