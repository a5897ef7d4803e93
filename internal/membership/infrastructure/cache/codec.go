// Package cache implements the membership read cache.
package cache

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/google/uuid"
)

// entry is the stored form. None marks a cached "no membership" answer.
type entry struct {
	None               bool       `json:"none,omitempty"`
	ID                 string     `json:"id,omitempty"`
	UserID             uuid.UUID  `json:"user_id,omitempty"`
	PlanID             string     `json:"plan_id,omitempty"`
	Status             string     `json:"status,omitempty"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

func encode(m *domain.Membership) ([]byte, error) {
	if m == nil {
		return json.Marshal(entry{None: true})
	}
	return json.Marshal(entry{
		ID:                 m.ID,
		UserID:             m.UserID,
		PlanID:             m.PlanID,
		Status:             string(m.Status),
		CurrentPeriodStart: m.CurrentPeriodStart,
		CurrentPeriodEnd:   m.CurrentPeriodEnd,
		CancelAtPeriodEnd:  m.CancelAtPeriodEnd,
		CancelledAt:        m.CancelledAt,
	})
}

func decode(data []byte) (*domain.Membership, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.None {
		return nil, nil
	}
	return &domain.Membership{
		ID:                 e.ID,
		UserID:             e.UserID,
		PlanID:             e.PlanID,
		Status:             domain.MembershipStatus(e.Status),
		CurrentPeriodStart: e.CurrentPeriodStart,
		CurrentPeriodEnd:   e.CurrentPeriodEnd,
		CancelAtPeriodEnd:  e.CancelAtPeriodEnd,
		CancelledAt:        e.CancelledAt,
	}, nil
}
