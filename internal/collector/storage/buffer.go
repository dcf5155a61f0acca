package storage

import (
	"encoding/json"
	"sync"

	"github.com/brightpath/pulse/internal/domain"
)

// InteractionEvent is one event row queued for batch insertion.
type InteractionEvent struct {
	ID           string
	SessionID    string
	VisitorID    string
	Path         string
	EventType    string
	ElementID    string
	ElementLabel string
	Metadata     []byte
}

// EventBuffer is a channel-based buffer for non-blocking interaction event
// ingestion. The ingest handler never waits on the database.
type EventBuffer struct {
	events chan InteractionEvent
	closed chan struct{}
	once   sync.Once
}

// NewEventBuffer creates a buffer with a buffered channel of the given
// capacity.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		events: make(chan InteractionEvent, capacity),
		closed: make(chan struct{}),
	}
}

// Send performs a non-blocking send of an event into the buffer.
// It returns false if the buffer channel is full.
func (b *EventBuffer) Send(event InteractionEvent) bool {
	select {
	case b.events <- event:
		return true
	default:
		return false
	}
}

// Len returns the number of events currently in the buffer channel.
func (b *EventBuffer) Len() int {
	return len(b.events)
}

// Close signals the buffer to stop accepting events.
// It is safe to call multiple times.
func (b *EventBuffer) Close() {
	b.once.Do(func() {
		close(b.closed)
	})
}

// marshalMetadata converts free-form event metadata to a JSONB value, nil
// when absent.
func marshalMetadata(md map[string]any) []byte {
	if len(md) == 0 {
		return nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil
	}
	return data
}

// FromEventRequest converts an ingest DTO into a buffered row.
func FromEventRequest(id string, req domain.EventRequest) InteractionEvent {
	return InteractionEvent{
		ID:           id,
		SessionID:    req.SessionID,
		VisitorID:    req.VisitorID,
		Path:         req.Path,
		EventType:    string(req.EventType),
		ElementID:    req.ElementID,
		ElementLabel: req.ElementLabel,
		Metadata:     marshalMetadata(req.Metadata),
	}
}
