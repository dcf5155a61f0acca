package storage_test

import (
	"testing"

	"github.com/brightpath/pulse/internal/collector/storage"
	"github.com/brightpath/pulse/internal/domain"
)

func newTestEventRequest(t *testing.T) domain.EventRequest {
	t.Helper()

	return domain.EventRequest{
		SessionID:    "sess1",
		VisitorID:    "vis1",
		Path:         "/pricing",
		EventType:    domain.EventContactClick,
		ElementID:    "cta-call",
		ElementLabel: "Call us",
		Metadata:     map[string]any{"section": "hero"},
	}
}

func TestEventBuffer_Send(t *testing.T) {
	t.Helper()

	buf := storage.NewEventBuffer(10)
	defer buf.Close()

	event := storage.FromEventRequest("evt1", newTestEventRequest(t))
	ok := buf.Send(event)

	if !ok {
		t.Fatal("expected Send to succeed on non-full buffer")
	}
}

func TestEventBuffer_SendFull(t *testing.T) {
	t.Helper()

	buf := storage.NewEventBuffer(1)
	defer buf.Close()

	event := storage.FromEventRequest("evt1", newTestEventRequest(t))

	// Fill the buffer.
	ok := buf.Send(event)
	if !ok {
		t.Fatal("expected first Send to succeed")
	}

	// Second send should fail (non-blocking).
	ok = buf.Send(event)
	if ok {
		t.Fatal("expected Send to return false when buffer is full")
	}
}

func TestFromEventRequest(t *testing.T) {
	t.Helper()

	event := storage.FromEventRequest("evt1", newTestEventRequest(t))

	if event.ID != "evt1" {
		t.Fatalf("expected id evt1, got %q", event.ID)
	}
	if event.EventType != "contact_click" {
		t.Fatalf("expected event type contact_click, got %q", event.EventType)
	}
	if event.Metadata == nil {
		t.Fatal("expected metadata to be marshaled")
	}
}

func TestFromEventRequest_EmptyMetadata(t *testing.T) {
	t.Helper()

	req := newTestEventRequest(t)
	req.Metadata = nil

	event := storage.FromEventRequest("evt1", req)
	if event.Metadata != nil {
		t.Fatal("expected nil metadata for empty map")
	}
}
