package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
)

// kindCarrier is implemented by transport errors that can classify themselves.
type kindCarrier interface {
	ErrorKind() domain.ErrorKind
}

// classify turns any failure into a *domain.Error with a user message.
// fallback applies when nothing in the chain names a kind.
func (s *Service) classify(err error, fallback domain.ErrorKind) *domain.Error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		if de.Message != "" {
			return de
		}
		return domain.NewError(de.Kind, s.messageFor(de.Kind), err)
	}

	var kind domain.ErrorKind
	var kc kindCarrier
	if errors.As(err, &kc) {
		kind = kc.ErrorKind()
	}
	if kind == "" {
		if k := domain.KindOf(err); k != domain.KindUnknown {
			kind = k
		}
	}
	if kind == "" && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		kind = domain.KindNetwork
	}
	if kind == "" {
		kind = fallback
	}
	return domain.NewError(kind, s.messageFor(kind), err)
}

func (s *Service) messageFor(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindAlreadySubscribed:
		return "You are already subscribed to this plan."
	case domain.KindConflictingActiveMembership:
		return "You already have an active membership. Confirm the switch to change plans."
	case domain.KindCheckoutCreationFailed:
		return "We couldn't start the checkout. Please try again."
	case domain.KindVerificationFailed:
		return fmt.Sprintf("We couldn't confirm your payment. Please contact %s before trying again; you may already have been charged.", s.opts.SupportContact)
	case domain.KindNetwork:
		return "Could not reach the membership service. Check your connection and try again."
	case domain.KindPlanUnavailable:
		return "This plan is not available."
	case domain.KindNoPendingSwitch:
		return "There is no plan switch waiting for confirmation."
	case domain.KindRequestInFlight:
		return "A request is already in progress. Please wait for it to finish."
	case domain.KindInvalidTransition:
		return "Your membership can't be changed that way right now."
	case domain.KindUnauthenticated:
		return "Please sign in to manage your membership."
	default:
		return "Something went wrong. Please try again."
	}
}

// reject builds a precondition failure that never reached the network.
func (s *Service) reject(kind domain.ErrorKind, message string) *domain.Error {
	if message == "" {
		message = s.messageFor(kind)
	}
	return domain.NewError(kind, message, nil)
}
