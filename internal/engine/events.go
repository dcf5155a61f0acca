package engine

import (
	"context"

	"github.com/brightpath/pulse/internal/domain"
	"github.com/brightpath/pulse/internal/gateway"
	"github.com/brightpath/pulse/internal/logger"
)

// EventEmitter delivers discrete interaction events, fire-and-forget.
// Telemetry must never break the user-facing action it is attached to, so
// failures are logged by the dispatcher and never propagated, and no
// ordering relative to other writes is promised to the backend.
type EventEmitter struct {
	gw   gateway.Gateway
	disp *dispatcher
	log  logger.Logger
}

// NewEventEmitter creates an emitter.
func NewEventEmitter(gw gateway.Gateway, disp *dispatcher, log logger.Logger) *EventEmitter {
	return &EventEmitter{gw: gw, disp: disp, log: log}
}

// Emit queues one interaction event. Without session and visitor context the
// call is a silent no-op; unknown event types are dropped with a debug log.
func (e *EventEmitter) Emit(sessionID, visitorID, path string, eventType domain.EventType, elementID, elementLabel string, metadata map[string]any) {
	if sessionID == "" || visitorID == "" {
		return
	}
	if !eventType.Valid() {
		e.log.Debug("Dropping event of unknown type",
			logger.String("event_type", string(eventType)),
		)
		return
	}

	req := domain.EventRequest{
		SessionID:    sessionID,
		VisitorID:    visitorID,
		Path:         path,
		EventType:    eventType,
		ElementID:    elementID,
		ElementLabel: elementLabel,
		Metadata:     metadata,
	}

	e.disp.enqueue("record_event", func(ctx context.Context) error {
		return e.gw.RecordEvent(ctx, req)
	})
}
