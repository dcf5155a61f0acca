// Package storage persists telemetry records to PostgreSQL. Interaction
// events flow through a buffered batch writer; everything else is written
// synchronously per request.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/brightpath/pulse/internal/domain"
)

// Store executes the synchronous telemetry writes against PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertVisitor inserts a visitor keyed by fingerprint, or refreshes
// last_seen when the fingerprint is already known. It returns the durable
// visitor id either way.
func (s *Store) UpsertVisitor(ctx context.Context, req domain.EnsureVisitorRequest) (string, error) {
	const query = `
		INSERT INTO visitors (id, fingerprint, device_type, browser, os, screen_resolution)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (fingerprint) DO UPDATE SET last_seen = now()
		RETURNING id`

	var visitorID string
	err := s.db.QueryRowContext(ctx, query,
		uuid.NewString(), req.Fingerprint,
		req.Device.DeviceType, req.Device.Browser, req.Device.OS, req.Device.ScreenResolution,
	).Scan(&visitorID)
	if err != nil {
		return "", fmt.Errorf("upsert visitor: %w", err)
	}

	return visitorID, nil
}

// TouchVisitor refreshes a visitor's last_seen timestamp.
func (s *Store) TouchVisitor(ctx context.Context, visitorID string) error {
	const query = `UPDATE visitors SET last_seen = now() WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, visitorID); err != nil {
		return fmt.Errorf("touch visitor: %w", err)
	}

	return nil
}

// CreateSession opens a new session row and returns its id. Country is
// resolved by the handler from the request network context.
func (s *Store) CreateSession(ctx context.Context, req domain.CreateSessionRequest, country string) (string, error) {
	const query = `
		INSERT INTO sessions (id, visitor_id, entry_page, exit_page, referrer, country,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content)
		VALUES ($1, $2, $3, $3, $4, $5, $6, $7, $8, $9, $10)`

	sessionID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, query,
		sessionID, req.VisitorID, req.EntryPage, req.Referrer, country,
		req.UTM.Source, req.UTM.Medium, req.UTM.Campaign, req.UTM.Term, req.UTM.Content,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	return sessionID, nil
}

// CloseSession finalizes a session with its exit page and duration. Closing
// an already-closed or unknown session is not an error; trackers may retry
// after a missed unload.
func (s *Store) CloseSession(ctx context.Context, sessionID string, req domain.CloseSessionRequest) error {
	const query = `
		UPDATE sessions
		SET ended_at = now(), exit_page = $2, duration_seconds = $3
		WHERE id = $1 AND ended_at IS NULL`

	if _, err := s.db.ExecContext(ctx, query, sessionID, req.ExitPage, req.DurationSeconds); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	return nil
}

// RecordPageView inserts a page view row and advances the owning session's
// page count and exit page in the same transaction.
func (s *Store) RecordPageView(ctx context.Context, req domain.PageViewRequest) (string, error) {
	const insertView = `
		INSERT INTO page_views (id, session_id, visitor_id, path, title, internal_referrer)
		VALUES ($1, $2, $3, $4, $5, $6)`

	const advanceSession = `
		UPDATE sessions SET page_count = page_count + 1, exit_page = $2 WHERE id = $1`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin page view tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	pageViewID := uuid.NewString()
	if _, err = tx.ExecContext(ctx, insertView,
		pageViewID, req.SessionID, req.VisitorID, req.Path, req.Title, req.InternalReferrer,
	); err != nil {
		return "", fmt.Errorf("insert page view: %w", err)
	}

	if _, err = tx.ExecContext(ctx, advanceSession, req.SessionID, req.Path); err != nil {
		return "", fmt.Errorf("advance session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit page view tx: %w", err)
	}

	return pageViewID, nil
}

// UpdatePageView folds accumulated metrics into the most recent page view
// for the (session, path) pair. GREATEST keeps the stored values monotone,
// so repeated flushes before navigation are safe in any order.
func (s *Store) UpdatePageView(ctx context.Context, upd domain.PageViewUpdate) error {
	const query = `
		UPDATE page_views
		SET time_on_page = GREATEST(time_on_page, $3), scroll_depth = GREATEST(scroll_depth, $4)
		WHERE id = (
			SELECT id FROM page_views
			WHERE session_id = $1 AND path = $2
			ORDER BY created_at DESC
			LIMIT 1
		)`

	if _, err := s.db.ExecContext(ctx, query,
		upd.SessionID, upd.Path, upd.TimeOnPage, upd.ScrollDepth,
	); err != nil {
		return fmt.Errorf("update page view: %w", err)
	}

	return nil
}

// StartJourney registers a journey as active. The journey id is minted by
// the tracker, so a retried start is a no-op.
func (s *Store) StartJourney(ctx context.Context, req domain.JourneyStartRequest, country string) error {
	const query = `
		INSERT INTO journeys (id, entry_page, exit_page, device_type, country)
		VALUES ($1, $2, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query,
		req.JourneyID, req.EntryPage, req.DeviceType, country,
	); err != nil {
		return fmt.Errorf("start journey: %w", err)
	}

	return nil
}

// RecordJourneyStep appends a step to a journey and advances its exit page
// and step count in the same transaction.
func (s *Store) RecordJourneyStep(ctx context.Context, journeyID string, req domain.JourneyStepRequest) error {
	const insertStep = `
		INSERT INTO journey_events (id, journey_id, event_type, page)
		VALUES ($1, $2, $3, $4)`

	const advanceJourney = `
		UPDATE journeys
		SET step_count = step_count + 1, exit_page = $2, last_step_at = now()
		WHERE id = $1`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journey step tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, insertStep,
		uuid.NewString(), journeyID, req.EventType, req.Page,
	); err != nil {
		return fmt.Errorf("insert journey step: %w", err)
	}

	if _, err = tx.ExecContext(ctx, advanceJourney, journeyID, req.Page); err != nil {
		return fmt.Errorf("advance journey: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit journey step tx: %w", err)
	}

	return nil
}

// AppendReplayChunk stores one write-once chunk of replay samples as JSONB.
func (s *Store) AppendReplayChunk(ctx context.Context, journeyID string, req domain.ReplayChunkRequest) error {
	samples, err := json.Marshal(req.Samples)
	if err != nil {
		return fmt.Errorf("marshal replay samples: %w", err)
	}

	const query = `
		INSERT INTO replay_chunks (id, journey_id, sample_count, samples)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), journeyID, len(req.Samples), samples,
	); err != nil {
		return fmt.Errorf("append replay chunk: %w", err)
	}

	return nil
}
