package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindedErr struct{ kind domain.ErrorKind }

func (e kindedErr) Error() string                { return "server said " + string(e.kind) }
func (e kindedErr) ErrorKind() domain.ErrorKind { return e.kind }

func TestAttemptSubscribe_NoMembershipProceeds(t *testing.T) {
	h := newHarness(nil)

	outcome, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionProceed, outcome.Decision)
	assert.Equal(t, "https://pay.example/cs_test", outcome.CheckoutURL)
	assert.Equal(t, "cs_test", outcome.SessionID)

	reqs := h.backend.checkouts()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gold-monthly", reqs[0].PlanID)
	assert.Equal(t, "https://donora.org/membership/success", reqs[0].SuccessURL)
	assert.Equal(t, "https://donora.org/membership", reqs[0].CancelURL)
	assert.Empty(t, reqs[0].SwitchFromPlanID)

	assert.Nil(t, h.svc.PendingSwitch())
	assert.Equal(t, []string{"https://pay.example/cs_test"}, h.urls())
	assert.Equal(t, []string{domain.RoutingKeyCheckoutRequested}, h.publisher.routingKeys())
	assert.False(t, h.svc.Session().InFlight(OpCheckout))
}

func TestAttemptSubscribe_CheckoutInvalidatesCache(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()

	outcome, err := h.svc.AttemptSubscribe(ctx, "gold-monthly")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionProceed, outcome.Decision)
	assert.False(t, h.cache.has(h.userID), "a cached absence must not outlive the checkout")

	// Payment completes in the browser.
	h.backend.setMembership(activeMembership("gold-monthly"))

	outcome, err = h.svc.AttemptSubscribe(ctx, "gold-monthly")
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAlreadySubscribed, outcome.Decision)
	assert.Len(t, h.backend.checkouts(), 1)
}

func TestConfirmSwitch_CheckoutInvalidatesCache(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()
	ctx := context.Background()

	_, err := h.svc.AttemptSubscribe(ctx, "gold-monthly")
	require.NoError(t, err)
	_, err = h.svc.ConfirmSwitch(ctx, "gold-monthly")
	require.NoError(t, err)
	assert.False(t, h.cache.has(h.userID))

	h.backend.setMembership(activeMembership("gold-monthly"))

	outcome, err := h.svc.AttemptSubscribe(ctx, "gold-monthly")
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAlreadySubscribed, outcome.Decision)
	assert.Nil(t, h.svc.PendingSwitch())
	assert.Len(t, h.backend.checkouts(), 1)
}

func TestAttemptSubscribe_NonBlockingMembershipAlwaysProceeds(t *testing.T) {
	statuses := []domain.MembershipStatus{
		domain.StatusCancelled, domain.StatusPastDue, domain.StatusUnpaid, domain.StatusIncomplete,
	}
	for _, plan := range []string{"bronze-monthly", "gold-monthly", "gold-annual"} {
		for _, status := range statuses {
			t.Run(fmt.Sprintf("%s/%s", status, plan), func(t *testing.T) {
				m := activeMembership("bronze-monthly")
				m.Status = status
				h := newHarness(m)

				outcome, err := h.svc.AttemptSubscribe(context.Background(), plan)
				require.NoError(t, err)
				assert.Equal(t, domain.DecisionProceed, outcome.Decision)
				assert.Len(t, h.backend.checkouts(), 1)
				assert.Nil(t, h.svc.PendingSwitch())
			})
		}
	}

	t.Run("active but cancelling", func(t *testing.T) {
		m := activeMembership("bronze-monthly")
		m.CancelAtPeriodEnd = true
		h := newHarness(m)

		outcome, err := h.svc.AttemptSubscribe(context.Background(), "bronze-monthly")
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionProceed, outcome.Decision)
		assert.Len(t, h.backend.checkouts(), 1)
	})
}

func TestAttemptSubscribe_SamePlanIsAlreadySubscribed(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()
	before := h.backend.requests()

	outcome, err := h.svc.AttemptSubscribe(context.Background(), "bronze-monthly")
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionAlreadySubscribed, outcome.Decision)
	assert.Equal(t, before, h.backend.requests(), "no request of any kind")
	assert.Empty(t, h.urls())

	notes := h.inbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelInfo, notes[0].Level)
	assert.Equal(t, domain.KindAlreadySubscribed, notes[0].Kind)
	assert.Equal(t, "You are already subscribed to this plan.", notes[0].Message)
}

func TestAttemptSubscribe_DifferentPlanNeedsConfirmation(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()
	before := h.backend.requests()

	outcome, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionConfirmSwitch, outcome.Decision)
	assert.Equal(t, before, h.backend.requests())

	pending := h.svc.PendingSwitch()
	require.NotNil(t, pending)
	assert.Equal(t, "gold-monthly", pending.Target.ID)
	assert.Equal(t, "bronze-monthly", pending.FromPlanID)
	assert.Equal(t, domain.SwitchUpgrade, pending.Direction)
	require.NotNil(t, pending.FromPlan)
	assert.Equal(t, fixedNow, pending.CreatedAt)

	notes := h.inbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.KindConflictingActiveMembership, notes[0].Kind)
	assert.Contains(t, notes[0].Message, "Bronze (monthly)")
	assert.Contains(t, notes[0].Message, "Gold (monthly)")

	outcome, err = h.svc.ConfirmSwitch(context.Background(), "gold-monthly")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/cs_test", outcome.CheckoutURL)

	reqs := h.backend.checkouts()
	require.Len(t, reqs, 1, "exactly one checkout after confirmation")
	assert.Equal(t, "gold-monthly", reqs[0].PlanID)
	assert.Equal(t, "bronze-monthly", reqs[0].SwitchFromPlanID)
	assert.Nil(t, h.svc.PendingSwitch())
	assert.Equal(t, []string{domain.RoutingKeySwitchRequested}, h.publisher.routingKeys())
}

func TestAttemptSubscribe_NeverMutatesWithoutWarmCache(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))

	_, err := h.svc.AttemptSubscribe(context.Background(), "bronze-monthly")
	require.NoError(t, err)
	_, err = h.svc.AttemptSubscribe(context.Background(), "gold-annual")
	require.NoError(t, err)

	assert.Zero(t, h.backend.mutations())
}

func TestAttemptSubscribe_ReselectWhilePendingReplacesTarget(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()
	before := h.backend.requests()

	_, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	require.NoError(t, err)
	_, err = h.svc.AttemptSubscribe(context.Background(), "gold-annual")
	require.NoError(t, err)

	assert.Equal(t, before, h.backend.requests())
	require.NotNil(t, h.svc.PendingSwitch())
	assert.Equal(t, "gold-annual", h.svc.PendingSwitch().Target.ID)

	_, err = h.svc.ConfirmSwitch(context.Background(), "gold-monthly")
	assert.ErrorIs(t, err, domain.ErrNoPendingSwitch)
	assert.Zero(t, h.backend.mutations())
	assert.NotNil(t, h.svc.PendingSwitch(), "a mismatched confirmation keeps the pending switch")
}

func TestAttemptSubscribe_ReselectCurrentPlanDropsPending(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()

	_, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	require.NoError(t, err)
	outcome, err := h.svc.AttemptSubscribe(context.Background(), "bronze-monthly")
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionAlreadySubscribed, outcome.Decision)
	assert.Nil(t, h.svc.PendingSwitch())
	assert.Zero(t, h.backend.mutations())
}

func TestAttemptSubscribe_PendingSurvivesServerSideChange(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()

	_, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	require.NoError(t, err)

	// The membership lapses elsewhere; a fresh read no longer blocks.
	lapsed := activeMembership("bronze-monthly")
	lapsed.Status = domain.StatusPastDue
	h.backend.setMembership(lapsed)
	_, err = h.svc.Refresh(context.Background())
	require.NoError(t, err)

	outcome, err := h.svc.AttemptSubscribe(context.Background(), "gold-annual")
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionConfirmSwitch, outcome.Decision)
	assert.Zero(t, h.backend.mutations(), "only ConfirmSwitch or AbandonSwitch resolves a pending switch")
}

func TestAttemptSubscribe_UnavailablePlan(t *testing.T) {
	tests := []struct {
		name   string
		planID string
	}{
		{"inactive plan", "legacy"},
		{"unknown plan", "diamond-monthly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			_, err := h.svc.AttemptSubscribe(context.Background(), tt.planID)
			assert.ErrorIs(t, err, domain.ErrPlanUnavailable)
			assert.Zero(t, h.backend.mutations())
			assert.False(t, h.svc.Session().InFlight(OpCheckout))
		})
	}
}

func TestAbandonSwitch_IssuesNoRequests(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()

	_, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	require.NoError(t, err)
	before := h.backend.requests()

	assert.True(t, h.svc.AbandonSwitch(context.Background()))
	assert.Nil(t, h.svc.PendingSwitch())

	// Unrelated interactions afterwards.
	assert.False(t, h.svc.AbandonSwitch(context.Background()))
	_ = h.svc.PendingSwitch()
	_, _ = h.svc.Session().Snapshot()
	_, err = h.svc.CurrentMembership(context.Background())
	require.NoError(t, err)

	_, err = h.svc.ConfirmSwitch(context.Background(), "gold-monthly")
	assert.ErrorIs(t, err, domain.ErrNoPendingSwitch)

	assert.Equal(t, before, h.backend.requests())
	assert.Zero(t, h.backend.mutations())
}

func TestConfirmSwitch_WithoutPending(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))

	_, err := h.svc.ConfirmSwitch(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNoPendingSwitch)
	assert.Zero(t, h.backend.requests())

	notes := h.inbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelWarning, notes[0].Level)
	assert.Equal(t, domain.KindNoPendingSwitch, notes[0].Kind)
}

func TestCheckout_InFlightGuard(t *testing.T) {
	h := newHarness(nil)
	h.prime()
	h.backend.checkoutEntered = make(chan struct{})
	h.backend.checkoutRelease = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	}()

	<-h.backend.checkoutEntered
	assert.True(t, h.svc.Session().InFlight(OpCheckout))
	before := h.backend.requests()

	_, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	assert.ErrorIs(t, err, domain.ErrRequestInFlight)
	_, err = h.svc.ConfirmSwitch(context.Background(), "gold-monthly")
	assert.ErrorIs(t, err, domain.ErrRequestInFlight)
	assert.Equal(t, before, h.backend.requests(), "rejected attempts issue no request")

	close(h.backend.checkoutRelease)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Len(t, h.backend.checkouts(), 1)
	assert.False(t, h.svc.Session().InFlight(OpCheckout))
}

func TestCheckout_FailureClearsInFlightAndAllowsRetry(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind domain.ErrorKind
	}{
		{"server error", errors.New("status=500"), domain.KindCheckoutCreationFailed},
		{"missing url", fmt.Errorf("no url: %w", domain.ErrCheckoutCreationFailed), domain.KindCheckoutCreationFailed},
		{"network", domain.NewError(domain.KindNetwork, "offline", errors.New("dial tcp")), domain.KindNetwork},
		{"timeout", context.DeadlineExceeded, domain.KindNetwork},
		{"server says already subscribed", kindedErr{domain.KindAlreadySubscribed}, domain.KindAlreadySubscribed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			h.backend.checkoutErr = tt.err

			outcome, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
			assert.Nil(t, outcome)
			assert.Equal(t, tt.wantKind, domain.KindOf(err))
			assert.False(t, h.svc.Session().InFlight(OpCheckout))
			assert.Empty(t, h.urls())
			assert.Empty(t, h.publisher.routingKeys(), "nothing is recorded for a failed checkout")

			notes := h.inbox.Drain()
			require.NotEmpty(t, notes)
			assert.Equal(t, tt.wantKind, notes[len(notes)-1].Kind)

			h.backend.mu.Lock()
			h.backend.checkoutErr = nil
			h.backend.mu.Unlock()
			_, err = h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
			require.NoError(t, err)
			assert.Len(t, h.backend.checkouts(), 2, "nothing retried automatically; the user re-initiated")
		})
	}
}

func TestCancelMembership_NoOptimisticUpdate(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()
	h.backend.cancelEntered = make(chan struct{})
	h.backend.cancelRelease = make(chan struct{})
	h.backend.readEntered = make(chan struct{})
	h.backend.readRelease = make(chan struct{})

	done := make(chan struct{})
	var result *domain.Membership
	var cancelErr error
	go func() {
		defer close(done)
		result, cancelErr = h.svc.CancelMembership(context.Background(), true)
	}()

	<-h.backend.cancelEntered
	snap, _ := h.svc.Session().Snapshot()
	assert.Equal(t, domain.LifecycleActive, snap.Lifecycle(), "unchanged while the request is outstanding")
	close(h.backend.cancelRelease)

	<-h.backend.readEntered
	snap, _ = h.svc.Session().Snapshot()
	assert.False(t, snap.CancelAtPeriodEnd, "unchanged until the re-fetch resolves")
	assert.False(t, h.cache.has(h.userID), "cache invalidated before the re-fetch")
	close(h.backend.readRelease)

	<-done
	require.NoError(t, cancelErr)
	assert.True(t, result.CancelAtPeriodEnd)
	snap, _ = h.svc.Session().Snapshot()
	assert.Equal(t, domain.LifecyclePendingCancel, snap.Lifecycle())
	assert.Equal(t, []bool{true}, h.backend.cancelArgs)
	assert.Equal(t, []string{domain.RoutingKeyCancelRequested}, h.publisher.routingKeys())

	notes := h.inbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelSuccess, notes[0].Level)
	assert.Contains(t, notes[0].Message, "Oct 31, 2026")
}

func TestCancelMembership_Immediately(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))

	result, err := h.svc.CancelMembership(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, result.Status)
	assert.Equal(t, []bool{false}, h.backend.cancelArgs)

	notes := h.inbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, "Your membership has been cancelled.", notes[0].Message)
}

func TestCancelMembership_ImmediatelyWhileScheduled(t *testing.T) {
	m := activeMembership("bronze-monthly")
	m.CancelAtPeriodEnd = true
	h := newHarness(m)

	result, err := h.svc.CancelMembership(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, result.Status)
	assert.Equal(t, []bool{false}, h.backend.cancelArgs)
	assert.Equal(t, []string{domain.RoutingKeyCancelRequested}, h.publisher.routingKeys())
}

func TestCancelMembership_ExpiredCacheReadsServer(t *testing.T) {
	h := newHarness(nil)
	h.prime()
	ctx := context.Background()

	// The membership appears elsewhere and the cached absence expires.
	h.backend.setMembership(activeMembership("bronze-monthly"))
	require.NoError(t, h.cache.Invalidate(ctx, h.userID))

	result, err := h.svc.CancelMembership(ctx, true)
	require.NoError(t, err)
	assert.True(t, result.CancelAtPeriodEnd)
	assert.Equal(t, []bool{true}, h.backend.cancelArgs)
}

func TestCancelMembership_Preconditions(t *testing.T) {
	pendingCancel := activeMembership("bronze-monthly")
	pendingCancel.CancelAtPeriodEnd = true
	pastDue := activeMembership("bronze-monthly")
	pastDue.Status = domain.StatusPastDue

	tests := []struct {
		name    string
		current *domain.Membership
		wantMsg string
	}{
		{"no membership", nil, "You don't have a membership to cancel."},
		{"already cancelling", pendingCancel, "Your membership is already scheduled to cancel."},
		{"past due", pastDue, "Only an active membership can be cancelled."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.current)
			_, err := h.svc.CancelMembership(context.Background(), true)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			assert.Equal(t, tt.wantMsg, domain.UserMessage(err))
			assert.Zero(t, h.backend.mutations())
		})
	}
}

func TestCancelMembership_BlockedByPendingSwitch(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	_, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	require.NoError(t, err)

	_, err = h.svc.CancelMembership(context.Background(), true)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Zero(t, h.backend.mutations())
}

func TestCancelMembership_ServerFailure(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()
	h.backend.cancelErr = errors.New("status=500")
	reads := h.backend.reads()

	_, err := h.svc.CancelMembership(context.Background(), true)
	assert.Equal(t, domain.KindUnknown, domain.KindOf(err))
	assert.Equal(t, reads, h.backend.reads(), "no re-fetch after a failed command")
	assert.False(t, h.svc.Session().InFlight(OpCancel))

	snap, _ := h.svc.Session().Snapshot()
	assert.Equal(t, domain.LifecycleActive, snap.Lifecycle())
}

func TestCancelMembership_RefetchFailure(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()
	h.backend.readErr = domain.NewError(domain.KindNetwork, "offline", errors.New("dial"))

	_, err := h.svc.CancelMembership(context.Background(), true)
	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
	assert.Equal(t, 1, h.backend.cancelCalls)

	snap, _ := h.svc.Session().Snapshot()
	assert.False(t, snap.CancelAtPeriodEnd, "the snapshot is never flipped locally")

	notes := h.inbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelWarning, notes[0].Level)
}

func TestReactivateMembership(t *testing.T) {
	m := activeMembership("bronze-monthly")
	m.CancelAtPeriodEnd = true
	h := newHarness(m)
	h.prime()
	reads := h.backend.reads()
	invalidations := h.cache.invalidated

	result, err := h.svc.ReactivateMembership(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, h.backend.reactivateCalls)
	assert.Equal(t, reads+1, h.backend.reads(), "exactly one re-fetch")
	assert.Equal(t, invalidations+1, h.cache.invalidated)
	assert.False(t, result.CancelAtPeriodEnd)

	snap, _ := h.svc.Session().Snapshot()
	assert.Equal(t, domain.LifecycleActive, snap.Lifecycle())
	assert.Equal(t, []string{domain.RoutingKeyReactivateRequested}, h.publisher.routingKeys())
}

func TestReactivateMembership_Preconditions(t *testing.T) {
	expired := activeMembership("bronze-monthly")
	expired.CancelAtPeriodEnd = true
	expired.CurrentPeriodEnd = fixedNow.Add(-time.Minute)

	tests := []struct {
		name    string
		current *domain.Membership
	}{
		{"no membership", nil},
		{"not cancelling", activeMembership("bronze-monthly")},
		{"period elapsed", expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.current)
			_, err := h.svc.ReactivateMembership(context.Background())
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			assert.Zero(t, h.backend.mutations())
		})
	}
}

func TestVerifyCheckout_Success(t *testing.T) {
	h := newHarness(nil)
	h.prime()
	h.backend.verify = &domain.CheckoutVerification{SessionID: "cs_1", Status: "complete", PaymentStatus: "paid", Confirmed: true}
	h.backend.setMembership(activeMembership("gold-monthly"))

	result, err := h.svc.VerifyCheckout(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "gold-monthly", result.Membership.PlanID)

	snap, _ := h.svc.Session().Snapshot()
	assert.Equal(t, "gold-monthly", snap.PlanID)
	assert.Equal(t, []string{domain.RoutingKeyCheckoutVerified}, h.publisher.routingKeys())

	notes := h.inbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelSuccess, notes[0].Level)
}

func TestVerifyCheckout_FailurePointsToSupport(t *testing.T) {
	tests := []struct {
		name   string
		verify *domain.CheckoutVerification
		err    error
	}{
		{"not confirmed", &domain.CheckoutVerification{Status: "open", PaymentStatus: "unpaid"}, nil},
		{"server error", nil, errors.New("status=500")},
		{"network", nil, domain.NewError(domain.KindNetwork, "offline", errors.New("dial"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			h.backend.verify = tt.verify
			h.backend.verifyErr = tt.err

			_, err := h.svc.VerifyCheckout(context.Background(), "cs_1")
			assert.ErrorIs(t, err, domain.ErrVerificationFailed)
			assert.Equal(t, 1, h.backend.verifyCalls, "never retried")
			assert.False(t, h.svc.Session().InFlight(OpVerify))

			notes := h.inbox.Drain()
			require.Len(t, notes, 1)
			assert.Equal(t, LevelError, notes[0].Level)
			assert.Equal(t, domain.KindVerificationFailed, notes[0].Kind)
			assert.Contains(t, notes[0].Message, "support@donora.org")
			assert.Equal(t, []string{domain.RoutingKeyVerificationFailed}, h.publisher.routingKeys())
		})
	}
}

func TestCurrentMembership_CacheFirst(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	ctx := context.Background()

	_, err := h.svc.CurrentMembership(ctx)
	require.NoError(t, err)
	_, err = h.svc.CurrentMembership(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.backend.reads())

	_, err = h.svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, h.backend.reads())
}

func TestCurrentMembership_CacheErrorFallsBackToServer(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.cache.failGet = true

	m, err := h.svc.CurrentMembership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bronze-monthly", m.PlanID)
	assert.Equal(t, 1, h.backend.reads())
}

func TestCurrentMembership_CachesAbsence(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()

	m, err := h.svc.CurrentMembership(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)
	_, err = h.svc.CurrentMembership(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.backend.reads())

	_, ok := h.svc.Session().Snapshot()
	assert.True(t, ok)
}

func TestPlans_Filter(t *testing.T) {
	h := newHarness(nil)

	plans, err := h.svc.Plans(context.Background(), domain.PlanFilter{Tier: domain.TierGold})
	require.NoError(t, err)
	require.Len(t, plans, 2)

	plans, err = h.svc.Plans(context.Background(), domain.PlanFilter{BillingCycle: domain.BillingAnnual})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "gold-annual", plans[0].ID)
}

func TestEndSession_DiscardsPendingSwitch(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.prime()

	_, err := h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	require.NoError(t, err)
	require.NotNil(t, h.svc.PendingSwitch())
	before := h.backend.requests()

	h.svc.EndSession(context.Background())

	assert.Nil(t, h.svc.PendingSwitch())
	assert.False(t, h.cache.has(h.userID))
	assert.Empty(t, h.svc.Session().AccessToken())
	_, ok := h.svc.Session().Snapshot()
	assert.False(t, ok)

	_, err = h.svc.ConfirmSwitch(context.Background(), "gold-monthly")
	assert.ErrorIs(t, err, domain.ErrNoPendingSwitch)
	assert.Equal(t, before, h.backend.requests())
}

func TestSignedOut_IsUnauthenticated(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.svc.Session().End()

	_, err := h.svc.CurrentMembership(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = h.svc.CancelMembership(context.Background(), true)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Zero(t, h.backend.requests())
}

func TestSession_ReadAfterEndIsDropped(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.backend.readEntered = make(chan struct{})
	h.backend.readRelease = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.svc.CurrentMembership(context.Background())
	}()

	<-h.backend.readEntered
	h.svc.Session().End()
	close(h.backend.readRelease)
	<-done

	_, ok := h.svc.Session().Snapshot()
	assert.False(t, ok, "a read from the previous session never becomes the displayed membership")
}

func TestSession_PendingFromEndedSessionIsDropped(t *testing.T) {
	h := newHarness(activeMembership("bronze-monthly"))
	h.backend.readEntered = make(chan struct{})
	h.backend.readRelease = make(chan struct{})

	done := make(chan struct{})
	var subErr error
	go func() {
		defer close(done)
		_, subErr = h.svc.AttemptSubscribe(context.Background(), "gold-monthly")
	}()

	<-h.backend.readEntered
	h.svc.EndSession(context.Background())
	h.svc.Session().Start(uuid.New(), "other")
	close(h.backend.readRelease)
	<-done

	assert.ErrorIs(t, subErr, domain.ErrUnauthenticated)
	assert.Nil(t, h.svc.PendingSwitch(), "a switch prompted for the previous user never carries over")
	_, ok := h.svc.Session().Snapshot()
	assert.False(t, ok)
	assert.Empty(t, h.backend.checkouts())
}
