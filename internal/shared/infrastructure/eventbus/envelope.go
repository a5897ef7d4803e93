package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/donora/internal/shared/domain"
	"github.com/google/uuid"
)

// Envelope is the wire form of a domain event on the bus.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EnvelopeMeta    `json:"metadata,omitempty"`
}

// EnvelopeMeta contains tracing data carried next to the payload.
type EnvelopeMeta struct {
	UserID        uuid.UUID `json:"user_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventConsumer handles specific routing keys.
type EventConsumer interface {
	// EventTypes returns the routing keys this consumer handles,
	// e.g. ["membership.cancel.requested"].
	EventTypes() []string

	// Handle processes the event.
	Handle(ctx context.Context, event *Envelope) error
}

// Encode wraps a domain event into its JSON envelope. The payload is the
// JSON form of the concrete event type.
func Encode(event domain.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	meta := event.Metadata()
	return json.Marshal(Envelope{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
		Metadata: EnvelopeMeta{
			UserID:        meta.UserID,
			CorrelationID: meta.CorrelationID,
		},
	})
}

// Decode parses an envelope produced by Encode.
func Decode(data []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("invalid event envelope: %w", err)
	}
	return env, nil
}
