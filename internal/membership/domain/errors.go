package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to the user.
type ErrorKind string

const (
	KindAlreadySubscribed           ErrorKind = "already_subscribed"
	KindConflictingActiveMembership ErrorKind = "conflicting_active_membership"
	KindCheckoutCreationFailed      ErrorKind = "checkout_creation_failed"
	KindVerificationFailed          ErrorKind = "verification_failed"
	KindNetwork                     ErrorKind = "network"
	KindUnknown                     ErrorKind = "unknown"

	KindPlanUnavailable   ErrorKind = "plan_unavailable"
	KindNoPendingSwitch   ErrorKind = "no_pending_switch"
	KindRequestInFlight   ErrorKind = "request_in_flight"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindUnauthenticated   ErrorKind = "unauthenticated"
)

// Sentinel errors, one per kind, for errors.Is checks.
var (
	ErrAlreadySubscribed      = errors.New("already subscribed to this plan")
	ErrSwitchNeedsConfirm     = errors.New("plan switch requires confirmation")
	ErrCheckoutCreationFailed = errors.New("checkout session could not be created")
	ErrVerificationFailed     = errors.New("checkout session could not be verified")
	ErrNetwork                = errors.New("network error")
	ErrPlanUnavailable        = errors.New("plan is not available")
	ErrNoPendingSwitch        = errors.New("no plan switch is awaiting confirmation")
	ErrRequestInFlight        = errors.New("a request of this kind is already in progress")
	ErrInvalidTransition      = errors.New("membership is not in a state that allows this action")
	ErrUnauthenticated        = errors.New("not signed in")
)

var sentinels = map[ErrorKind]error{
	KindAlreadySubscribed:           ErrAlreadySubscribed,
	KindConflictingActiveMembership: ErrSwitchNeedsConfirm,
	KindCheckoutCreationFailed:      ErrCheckoutCreationFailed,
	KindVerificationFailed:          ErrVerificationFailed,
	KindNetwork:                     ErrNetwork,
	KindPlanUnavailable:             ErrPlanUnavailable,
	KindNoPendingSwitch:             ErrNoPendingSwitch,
	KindRequestInFlight:             ErrRequestInFlight,
	KindInvalidTransition:           ErrInvalidTransition,
	KindUnauthenticated:             ErrUnauthenticated,
}

// Error carries a kind, a user-facing message and the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError builds a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Message != "":
		return e.Message
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrXxx) match on kind even when the cause differs.
func (e *Error) Is(target error) bool {
	if s, ok := sentinels[e.Kind]; ok && s == target {
		return true
	}
	return false
}

// KindOf returns the kind of a classified error, or KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, s := range sentinels {
		if errors.Is(err, s) {
			return kind
		}
	}
	return KindUnknown
}

// UserMessage returns the message to show for err.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return "Something went wrong. Please try again."
}
