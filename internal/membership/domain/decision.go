package domain

// Decision is the outcome of the subscription guard.
type Decision string

const (
	// DecisionProceed means a checkout session may be requested right away.
	DecisionProceed Decision = "proceed"
	// DecisionAlreadySubscribed means the user already pays for this plan.
	DecisionAlreadySubscribed Decision = "already_subscribed"
	// DecisionConfirmSwitch means the user holds a different active plan and
	// must confirm before any request is issued.
	DecisionConfirmSwitch Decision = "confirm_switch"
)

// Decide applies the subscription decision table. It performs no I/O.
func Decide(selected Plan, current *Membership) Decision {
	if !current.BlocksNewSubscription() {
		return DecisionProceed
	}
	if current.PlanID == selected.ID {
		return DecisionAlreadySubscribed
	}
	return DecisionConfirmSwitch
}
