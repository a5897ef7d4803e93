package application

import (
	"fmt"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
)

const dateLayout = "Jan 2, 2006"

func switchPrompt(p *PendingSwitch) string {
	from := p.FromPlanID
	if p.FromPlan != nil {
		from = p.FromPlan.Label()
	}
	msg := fmt.Sprintf("You are currently subscribed to %s. Switching to %s (%s) replaces it", from, p.Target.Label(), p.Target.Amount)
	if p.Direction != "" {
		msg += fmt.Sprintf(" as a %s", p.Direction)
	}
	return msg + ". Confirm to continue to checkout."
}

func cancelRefusal(m *domain.Membership) string {
	switch {
	case m == nil:
		return "You don't have a membership to cancel."
	case m.IsActive() && m.CancelAtPeriodEnd:
		return "Your membership is already scheduled to cancel."
	default:
		return "Only an active membership can be cancelled."
	}
}

// cancelConfirmation describes the record as the server returned it.
func cancelConfirmation(m *domain.Membership, atPeriodEnd bool) string {
	switch {
	case m == nil || m.Status == domain.StatusCancelled:
		return "Your membership has been cancelled."
	case m.CancelAtPeriodEnd && !m.CurrentPeriodEnd.IsZero():
		return fmt.Sprintf("Your membership will end on %s. You can reactivate it until then.", m.CurrentPeriodEnd.Format(dateLayout))
	case atPeriodEnd:
		return "Cancellation requested. Your membership stays active until the end of the billing period."
	default:
		return "Cancellation requested."
	}
}
