package dispatcher

import (
	"context"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// AuditHandler writes every event to the log. Persisting the audit trail
// elsewhere is left to downstream consumers of the log stream.
func AuditHandler(logger Logger) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Info("Audit event",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"request_type", evt.RequestType,
			"request_id", evt.RequestID,
			"actor_id", evt.ActorID,
			"correlation_id", evt.CorrelationID,
			"payload", evt.Payload,
		)
		return nil
	}
}
