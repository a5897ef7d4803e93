package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func activeMembership(planID string) *Membership {
	now := time.Now()
	return &Membership{
		ID:                 "m-1",
		PlanID:             planID,
		Status:             StatusActive,
		CurrentPeriodStart: now.Add(-24 * time.Hour),
		CurrentPeriodEnd:   now.Add(29 * 24 * time.Hour),
	}
}

func TestMembership_Lifecycle(t *testing.T) {
	var none *Membership
	assert.Equal(t, LifecycleNone, none.Lifecycle())

	m := activeMembership("bronze-monthly")
	assert.Equal(t, LifecycleActive, m.Lifecycle())

	m.CancelAtPeriodEnd = true
	assert.Equal(t, LifecyclePendingCancel, m.Lifecycle())

	m.Status = StatusCancelled
	assert.Equal(t, LifecycleCancelled, m.Lifecycle())

	m.Status = StatusPastDue
	assert.Equal(t, LifecycleInactive, m.Lifecycle())
}

func TestMembership_CanCancel(t *testing.T) {
	m := activeMembership("bronze-monthly")
	assert.True(t, m.CanCancel(true))
	assert.True(t, m.CanCancel(false))

	m.CancelAtPeriodEnd = true
	assert.False(t, m.CanCancel(true), "already scheduled")
	assert.True(t, m.CanCancel(false), "a scheduled cancellation can be brought forward")

	var none *Membership
	assert.False(t, none.CanCancel(true))
	assert.False(t, none.CanCancel(false))

	m = activeMembership("bronze-monthly")
	m.Status = StatusUnpaid
	assert.False(t, m.CanCancel(false))
}

func TestMembership_CanReactivate(t *testing.T) {
	now := time.Now()
	m := activeMembership("bronze-monthly")
	assert.False(t, m.CanReactivate(now), "not pending cancellation")

	m.CancelAtPeriodEnd = true
	assert.True(t, m.CanReactivate(now))
	assert.False(t, m.CanReactivate(m.CurrentPeriodEnd.Add(time.Second)), "period elapsed")

	m.Status = StatusCancelled
	assert.False(t, m.CanReactivate(now))
}

func TestMembership_CloneIsDeep(t *testing.T) {
	at := time.Now()
	m := activeMembership("gold-monthly")
	m.CancelledAt = &at

	c := m.Clone()
	c.Status = StatusCancelled
	*c.CancelledAt = at.Add(time.Hour)

	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, at, *m.CancelledAt)

	var none *Membership
	assert.Nil(t, none.Clone())
}
