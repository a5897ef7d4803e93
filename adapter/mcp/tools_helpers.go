package mcp

import (
	"fmt"
	"time"

	membershipApp "github.com/felixgeelhaar/donora/internal/membership/application"
	"github.com/felixgeelhaar/donora/internal/membership/domain"
)

type planView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Tier         string   `json:"tier"`
	BillingCycle string   `json:"billing_cycle"`
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency,omitempty"`
	Benefits     []string `json:"benefits,omitempty"`
	IsActive     bool     `json:"is_active"`
}

type membershipView struct {
	ID                 string `json:"id"`
	PlanID             string `json:"plan_id"`
	Status             string `json:"status"`
	Lifecycle          string `json:"lifecycle"`
	CurrentPeriodStart string `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CancelledAt        string `json:"cancelled_at,omitempty"`
}

type pendingView struct {
	FromPlanID   string `json:"from_plan_id"`
	TargetPlanID string `json:"target_plan_id"`
	TargetLabel  string `json:"target_label"`
	Direction    string `json:"direction,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toPlanView(p domain.Plan) planView {
	return planView{
		ID:           p.ID,
		Name:         p.Name,
		Label:        p.Label(),
		Tier:         string(p.Tier),
		BillingCycle: string(p.BillingCycle),
		Amount:       p.Amount.Value.StringFixed(2),
		Currency:     p.Amount.Currency,
		Benefits:     p.Benefits,
		IsActive:     p.IsActive,
	}
}

func toMembershipView(m *domain.Membership) *membershipView {
	if m == nil {
		return nil
	}
	v := &membershipView{
		ID:                 m.ID,
		PlanID:             m.PlanID,
		Status:             string(m.Status),
		Lifecycle:          string(m.Lifecycle()),
		CurrentPeriodStart: formatTime(m.CurrentPeriodStart),
		CurrentPeriodEnd:   formatTime(m.CurrentPeriodEnd),
		CancelAtPeriodEnd:  m.CancelAtPeriodEnd,
	}
	if m.CancelledAt != nil {
		v.CancelledAt = formatTime(*m.CancelledAt)
	}
	return v
}

func toPendingView(p *membershipApp.PendingSwitch) *pendingView {
	if p == nil {
		return nil
	}
	return &pendingView{
		FromPlanID:   p.FromPlanID,
		TargetPlanID: p.Target.ID,
		TargetLabel:  p.Target.Label(),
		Direction:    string(p.Direction),
		CreatedAt:    formatTime(p.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parsePlanFilter(tier, cycle string, includeInactive bool) (domain.PlanFilter, error) {
	filter := domain.PlanFilter{IncludeInactive: includeInactive}
	if tier != "" {
		t, err := domain.ParseTier(tier)
		if err != nil {
			return filter, fmt.Errorf("invalid tier: %w", err)
		}
		filter.Tier = t
	}
	if cycle != "" {
		c, err := domain.ParseBillingCycle(cycle)
		if err != nil {
			return filter, fmt.Errorf("invalid billing cycle: %w", err)
		}
		filter.BillingCycle = c
	}
	return filter, nil
}
