// Package gateway defines the ingestion boundary the tracker engine writes
// through, and an HTTP client for the pulse collector. Delivery is
// at-most-once by policy: callers log and discard errors from the
// fire-and-forget operations, and nothing is retried.
package gateway

import (
	"context"

	"github.com/brightpath/pulse/internal/domain"
)

// Gateway is the write API consumed by the tracker engine. Only the two
// identity-establishing calls return values the engine must wait for;
// everything else is issued fire-and-forget.
type Gateway interface {
	// EnsureVisitor upserts a visitor keyed by fingerprint and returns its
	// durable id. Idempotent.
	EnsureVisitor(ctx context.Context, req domain.EnsureVisitorRequest) (string, error)
	// TouchVisitor updates the visitor's last-seen timestamp. Best effort.
	TouchVisitor(ctx context.Context, visitorID string) error
	// CreateSession opens a session for a visitor and returns its id.
	CreateSession(ctx context.Context, req domain.CreateSessionRequest) (string, error)
	// CloseSession finalizes a session. Closing an unknown or already
	// closed session is not an error.
	CloseSession(ctx context.Context, sessionID string, req domain.CloseSessionRequest) error
	// RecordPageView records a page entry within a session.
	RecordPageView(ctx context.Context, req domain.PageViewRequest) error
	// UpdatePageView updates the most recent page view row for the
	// (session, path) pair with accumulated metrics.
	UpdatePageView(ctx context.Context, req domain.PageViewUpdate) error
	// RecordEvent appends one interaction event.
	RecordEvent(ctx context.Context, req domain.EventRequest) error
	// StartJourney registers a journey as active.
	StartJourney(ctx context.Context, req domain.JourneyStartRequest) error
	// RecordJourneyStep appends a step and advances the journey endpoints.
	RecordJourneyStep(ctx context.Context, journeyID string, req domain.JourneyStepRequest) error
	// AppendReplayChunk appends a batch of replay samples to a journey.
	AppendReplayChunk(ctx context.Context, journeyID string, req domain.ReplayChunkRequest) error
}
