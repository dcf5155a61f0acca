// Package handler implements the ingestion HTTP handlers.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightpath/pulse/internal/collector/storage"
	"github.com/brightpath/pulse/internal/domain"
	"github.com/brightpath/pulse/internal/logger"
)

// TelemetryStore is the storage surface the ingestion handlers write through.
type TelemetryStore interface {
	UpsertVisitor(ctx context.Context, req domain.EnsureVisitorRequest) (string, error)
	TouchVisitor(ctx context.Context, visitorID string) error
	CreateSession(ctx context.Context, req domain.CreateSessionRequest, country string) (string, error)
	CloseSession(ctx context.Context, sessionID string, req domain.CloseSessionRequest) error
	RecordPageView(ctx context.Context, req domain.PageViewRequest) (string, error)
	UpdatePageView(ctx context.Context, upd domain.PageViewUpdate) error
	StartJourney(ctx context.Context, req domain.JourneyStartRequest, country string) error
	RecordJourneyStep(ctx context.Context, journeyID string, req domain.JourneyStepRequest) error
	AppendReplayChunk(ctx context.Context, journeyID string, req domain.ReplayChunkRequest) error
}

// TelemetryHandler handles the telemetry ingestion routes.
type TelemetryHandler struct {
	store  TelemetryStore
	buffer *storage.EventBuffer
	logger logger.Logger
}

// NewTelemetryHandler creates a TelemetryHandler with the given dependencies.
func NewTelemetryHandler(
	store TelemetryStore,
	buffer *storage.EventBuffer,
	log logger.Logger,
) *TelemetryHandler {
	return &TelemetryHandler{
		store:  store,
		buffer: buffer,
		logger: log,
	}
}

// EnsureVisitor upserts a visitor keyed by fingerprint and returns its id.
func (h *TelemetryHandler) EnsureVisitor(c *gin.Context) {
	var req domain.EnsureVisitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Fingerprint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fingerprint is required"})
		return
	}

	visitorID, err := h.store.UpsertVisitor(c.Request.Context(), req)
	if err != nil {
		h.serverError(c, "upsert visitor", err)
		return
	}

	c.JSON(http.StatusOK, domain.EnsureVisitorResponse{VisitorID: visitorID})
}

// TouchVisitor refreshes a visitor's last_seen timestamp.
func (h *TelemetryHandler) TouchVisitor(c *gin.Context) {
	if err := h.store.TouchVisitor(c.Request.Context(), c.Param("id")); err != nil {
		h.serverError(c, "touch visitor", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateSession opens a new session. Country is resolved from the request
// network context, never trusted from the payload.
func (h *TelemetryHandler) CreateSession(c *gin.Context) {
	var req domain.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.VisitorID == "" || req.EntryPage == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "visitor_id and entry_page are required"})
		return
	}

	sessionID, err := h.store.CreateSession(c.Request.Context(), req, resolveCountry(c))
	if err != nil {
		h.serverError(c, "create session", err)
		return
	}

	c.JSON(http.StatusCreated, domain.CreateSessionResponse{SessionID: sessionID})
}

// CloseSession finalizes a session. Closing an unknown or already-closed
// session succeeds; trackers retry close after missed unloads.
func (h *TelemetryHandler) CloseSession(c *gin.Context) {
	var req domain.CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.CloseSession(c.Request.Context(), c.Param("id"), req); err != nil {
		h.serverError(c, "close session", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RecordPageView records a page entry within a session.
func (h *TelemetryHandler) RecordPageView(c *gin.Context) {
	var req domain.PageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SessionID == "" || req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and path are required"})
		return
	}

	pageViewID, err := h.store.RecordPageView(c.Request.Context(), req)
	if err != nil {
		h.serverError(c, "record page view", err)
		return
	}

	c.JSON(http.StatusCreated, domain.PageViewResponse{PageViewID: pageViewID})
}

// UpdatePageView folds accumulated metrics into the most recent page view
// for the session and path.
func (h *TelemetryHandler) UpdatePageView(c *gin.Context) {
	var upd domain.PageViewUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if upd.SessionID == "" || upd.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and path are required"})
		return
	}

	if err := h.store.UpdatePageView(c.Request.Context(), upd); err != nil {
		h.serverError(c, "update page view", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RecordEvent enqueues an interaction event for batched insertion. The
// handler never waits on the database.
func (h *TelemetryHandler) RecordEvent(c *gin.Context) {
	var req domain.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.EventType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}

	event := storage.FromEventRequest(uuid.NewString(), req)
	if !h.buffer.Send(event) {
		h.logger.Warn("Interaction event buffer full, dropping event",
			logger.String("session_id", req.SessionID),
			logger.String("event_type", string(req.EventType)),
		)
	}

	c.Status(http.StatusAccepted)
}

// StartJourney registers a journey as active.
func (h *TelemetryHandler) StartJourney(c *gin.Context) {
	var req domain.JourneyStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.JourneyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "journey_id is required"})
		return
	}

	if err := h.store.StartJourney(c.Request.Context(), req, resolveCountry(c)); err != nil {
		h.serverError(c, "start journey", err)
		return
	}

	c.Status(http.StatusCreated)
}

// RecordJourneyStep appends one step to a journey.
func (h *TelemetryHandler) RecordJourneyStep(c *gin.Context) {
	var req domain.JourneyStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.RecordJourneyStep(c.Request.Context(), c.Param("id"), req); err != nil {
		h.serverError(c, "record journey step", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AppendReplayChunk stores one chunk of replay samples for a journey.
func (h *TelemetryHandler) AppendReplayChunk(c *gin.Context) {
	var req domain.ReplayChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Samples) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "samples must not be empty"})
		return
	}

	if err := h.store.AppendReplayChunk(c.Request.Context(), c.Param("id"), req); err != nil {
		h.serverError(c, "append replay chunk", err)
		return
	}

	c.Status(http.StatusAccepted)
}

// serverError logs a storage failure and responds with 500.
func (h *TelemetryHandler) serverError(c *gin.Context, op string, err error) {
	h.logger.Error("Storage write failed",
		logger.String("op", op),
		logger.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// resolveCountry derives the visitor country from edge headers. CF-IPCountry
// is set by the CDN; X-Country is the reverse-proxy fallback. The tracker
// never supplies country itself.
func resolveCountry(c *gin.Context) string {
	if country := c.GetHeader("CF-IPCountry"); country != "" && country != "XX" {
		return country
	}
	if country := c.GetHeader("X-Country"); country != "" {
		return country
	}
	return "unknown"
}
