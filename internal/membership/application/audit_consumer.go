package application

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/felixgeelhaar/donora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/donora/pkg/observability"
)

// AuditConsumer writes every lifecycle request to the log.
type AuditConsumer struct {
	logger *slog.Logger
}

// NewAuditConsumer creates an audit consumer.
func NewAuditConsumer(logger *slog.Logger) *AuditConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditConsumer{logger: logger}
}

// EventTypes implements eventbus.EventConsumer.
func (c *AuditConsumer) EventTypes() []string {
	return []string{
		domain.RoutingKeyCheckoutRequested,
		domain.RoutingKeySwitchRequested,
		domain.RoutingKeyCancelRequested,
		domain.RoutingKeyReactivateRequested,
		domain.RoutingKeyCheckoutVerified,
		domain.RoutingKeyVerificationFailed,
	}
}

// Handle implements eventbus.EventConsumer.
func (c *AuditConsumer) Handle(ctx context.Context, event *eventbus.Envelope) error {
	level := slog.LevelInfo
	if event.RoutingKey == domain.RoutingKeyVerificationFailed {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "membership audit",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		observability.UserIDKey, event.Metadata.UserID,
		"event_correlation_id", event.Metadata.CorrelationID,
		"occurred_at", event.OccurredAt,
		"payload", string(event.Payload),
	)
	return nil
}
