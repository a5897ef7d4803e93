package domain

import (
	"fmt"
	"strings"
)

// Tier is a named membership level.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Rank orders tiers from lowest (1) to highest (4). Unknown tiers rank 0.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	case TierPlatinum:
		return 4
	default:
		return 0
	}
}

// Valid reports whether the tier is one of the known levels.
func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// ParseTier converts user or wire input into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier: %q", s)
	}
	return t, nil
}

// BillingCycle is the recurrence of a plan charge.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingAnnual  BillingCycle = "annual"
)

// Valid reports whether the cycle is monthly or annual.
func (c BillingCycle) Valid() bool {
	return c == BillingMonthly || c == BillingAnnual
}

// ParseBillingCycle converts user or wire input into a BillingCycle.
// "yearly" is accepted as an alias of annual.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return BillingMonthly, nil
	case "annual", "yearly", "year":
		return BillingAnnual, nil
	default:
		return "", fmt.Errorf("unknown billing cycle: %q", s)
	}
}

// Plan is a catalog entry. It is read-only from the client side.
type Plan struct {
	ID           string
	Name         string
	Tier         Tier
	BillingCycle BillingCycle
	Amount       Amount
	Benefits     []string
	IsActive     bool
}

// Label renders a short human description such as "Gold (monthly)".
func (p Plan) Label() string {
	name := p.Name
	if name == "" {
		name = p.ID
	}
	if p.BillingCycle == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, p.BillingCycle)
}

// SwitchDirection describes how a target plan compares to the current one.
type SwitchDirection string

const (
	SwitchUpgrade   SwitchDirection = "upgrade"
	SwitchDowngrade SwitchDirection = "downgrade"
	SwitchLateral   SwitchDirection = "lateral"
)

// DirectionTo compares tiers, falling back to price when tiers are equal.
func (p Plan) DirectionTo(target Plan) SwitchDirection {
	from, to := p.Tier.Rank(), target.Tier.Rank()
	switch {
	case to > from:
		return SwitchUpgrade
	case to < from:
		return SwitchDowngrade
	}
	switch p.Amount.Cmp(target.Amount) {
	case -1:
		return SwitchUpgrade
	case 1:
		return SwitchDowngrade
	default:
		return SwitchLateral
	}
}

// PlanFilter narrows a catalog listing.
type PlanFilter struct {
	Tier            Tier
	BillingCycle    BillingCycle
	IncludeInactive bool
}

// Matches reports whether the plan passes the filter.
func (f PlanFilter) Matches(p Plan) bool {
	if !f.IncludeInactive && !p.IsActive {
		return false
	}
	if f.Tier != "" && p.Tier != f.Tier {
		return false
	}
	if f.BillingCycle != "" && p.BillingCycle != f.BillingCycle {
		return false
	}
	return true
}

// FilterPlans returns the plans matching f, preserving order.
func FilterPlans(plans []Plan, f PlanFilter) []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// FindPlan returns the plan with the given id.
func FindPlan(plans []Plan, id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
