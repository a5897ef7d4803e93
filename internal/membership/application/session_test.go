package application

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/felixgeelhaar/donora/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StartAndEnd(t *testing.T) {
	s := NewSession()
	assert.False(t, s.Active())

	userID := uuid.New()
	s.Start(userID, "tok")
	assert.True(t, s.Active())
	got, ok := s.UserID()
	assert.True(t, ok)
	assert.Equal(t, userID, got)
	assert.Equal(t, "tok", s.AccessToken())

	gen := s.currentGeneration()
	require.True(t, s.storeSnapshot(gen, &domain.Membership{PlanID: "gold-monthly"}))
	s.storePlans(gen, samplePlans())
	require.True(t, s.setPending(gen, &PendingSwitch{Target: samplePlans()[1]}))

	s.End()
	assert.False(t, s.Active())
	assert.Empty(t, s.AccessToken())
	_, ok = s.Snapshot()
	assert.False(t, ok)
	_, ok = s.Plans()
	assert.False(t, ok)
	assert.Nil(t, s.Pending())
}

func TestSession_StaleGenerationIsDropped(t *testing.T) {
	s := NewSession()
	s.Start(uuid.New(), "tok")
	gen := s.currentGeneration()

	s.Start(uuid.New(), "other")
	assert.False(t, s.storeSnapshot(gen, &domain.Membership{PlanID: "gold-monthly"}))
	s.storePlans(gen, samplePlans())
	assert.False(t, s.setPending(gen, &PendingSwitch{Target: samplePlans()[1]}))

	_, ok := s.Snapshot()
	assert.False(t, ok)
	_, ok = s.Plans()
	assert.False(t, ok)
	assert.Nil(t, s.Pending())
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	s := NewSession()
	s.Start(uuid.New(), "tok")
	s.storeSnapshot(s.currentGeneration(), &domain.Membership{PlanID: "gold-monthly"})

	m, _ := s.Snapshot()
	m.PlanID = "tampered"

	again, _ := s.Snapshot()
	assert.Equal(t, "gold-monthly", again.PlanID)
}

func TestSession_InFlightGuard(t *testing.T) {
	s := NewSession()
	s.Start(uuid.New(), "tok")

	release, ok := s.begin(OpCancel)
	require.True(t, ok)
	assert.True(t, s.InFlight(OpCancel))

	_, ok = s.begin(OpCancel)
	assert.False(t, ok, "second cancel is rejected")

	other, ok := s.begin(OpReactivate)
	require.True(t, ok, "kinds are guarded independently")
	other()

	release()
	assert.False(t, s.InFlight(OpCancel))
	_, ok = s.begin(OpCancel)
	assert.True(t, ok)
}

func TestSession_ReleaseAfterEndIsHarmless(t *testing.T) {
	s := NewSession()
	s.Start(uuid.New(), "tok")

	release, ok := s.begin(OpCheckout)
	require.True(t, ok)
	s.End()
	s.Start(uuid.New(), "tok")

	next, ok := s.begin(OpCheckout)
	require.True(t, ok)
	release()
	assert.True(t, s.InFlight(OpCheckout), "an old release never clears the new session's flag")
	next()
	assert.False(t, s.InFlight(OpCheckout))
}

func TestSession_TakePending(t *testing.T) {
	s := NewSession()
	s.Start(uuid.New(), "tok")
	plans := samplePlans()

	_, ok := s.takePending("")
	assert.False(t, ok)

	require.True(t, s.setPending(s.currentGeneration(), &PendingSwitch{Target: plans[1]}))
	_, ok = s.takePending("gold-annual")
	assert.False(t, ok)
	assert.NotNil(t, s.Pending())

	p, ok := s.takePending("")
	require.True(t, ok)
	assert.Equal(t, "gold-monthly", p.Target.ID)
	assert.Nil(t, s.Pending())
}

func TestInbox_Drain(t *testing.T) {
	in := NewInbox()
	in.Notify(context.Background(), Notification{Level: LevelInfo, Message: "one"})
	in.Notify(context.Background(), Notification{Level: LevelError, Kind: domain.KindNetwork, Message: "two"})

	notes := in.Drain()
	require.Len(t, notes, 2)
	assert.Equal(t, "two", notes[1].Message)
	assert.Empty(t, in.Drain())

	data, err := json.Marshal(notes[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":"info","message":"one"}`, string(data))
}

func TestAuditConsumer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	consumer := NewAuditConsumer(logger)

	assert.Len(t, consumer.EventTypes(), 6)
	assert.Contains(t, consumer.EventTypes(), domain.RoutingKeyVerificationFailed)

	userID := uuid.New()
	err := consumer.Handle(context.Background(), &eventbus.Envelope{
		EventID:    uuid.New(),
		RoutingKey: domain.RoutingKeyVerificationFailed,
		Payload:    json.RawMessage(`{"session_id":"cs_1"}`),
		Metadata:   eventbus.EnvelopeMeta{UserID: userID, CorrelationID: "corr-1"},
	})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "membership audit", entry["msg"])
	assert.Equal(t, domain.RoutingKeyVerificationFailed, entry["routing_key"])
	assert.Equal(t, userID.String(), entry["user_id"])
	assert.Equal(t, "corr-1", entry["event_correlation_id"])
}
