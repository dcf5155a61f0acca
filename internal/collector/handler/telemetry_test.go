package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/pulse/internal/collector/handler"
	"github.com/brightpath/pulse/internal/collector/storage"
	"github.com/brightpath/pulse/internal/domain"
	"github.com/brightpath/pulse/internal/logger"
)

const testBufferCapacity = 100

// fakeStore records handler writes for assertion.
type fakeStore struct {
	visitors  []domain.EnsureVisitorRequest
	touched   []string
	sessions  []domain.CreateSessionRequest
	closed    []domain.CloseSessionRequest
	pageViews []domain.PageViewRequest
	updates   []domain.PageViewUpdate
	journeys  []domain.JourneyStartRequest
	steps     []domain.JourneyStepRequest
	chunks    []domain.ReplayChunkRequest
	countries []string
}

func (f *fakeStore) UpsertVisitor(_ context.Context, req domain.EnsureVisitorRequest) (string, error) {
	f.visitors = append(f.visitors, req)
	return "vis-1", nil
}

func (f *fakeStore) TouchVisitor(_ context.Context, visitorID string) error {
	f.touched = append(f.touched, visitorID)
	return nil
}

func (f *fakeStore) CreateSession(_ context.Context, req domain.CreateSessionRequest, country string) (string, error) {
	f.sessions = append(f.sessions, req)
	f.countries = append(f.countries, country)
	return "sess-1", nil
}

func (f *fakeStore) CloseSession(_ context.Context, _ string, req domain.CloseSessionRequest) error {
	f.closed = append(f.closed, req)
	return nil
}

func (f *fakeStore) RecordPageView(_ context.Context, req domain.PageViewRequest) (string, error) {
	f.pageViews = append(f.pageViews, req)
	return "pv-1", nil
}

func (f *fakeStore) UpdatePageView(_ context.Context, upd domain.PageViewUpdate) error {
	f.updates = append(f.updates, upd)
	return nil
}

func (f *fakeStore) StartJourney(_ context.Context, req domain.JourneyStartRequest, country string) error {
	f.journeys = append(f.journeys, req)
	f.countries = append(f.countries, country)
	return nil
}

func (f *fakeStore) RecordJourneyStep(_ context.Context, _ string, req domain.JourneyStepRequest) error {
	f.steps = append(f.steps, req)
	return nil
}

func (f *fakeStore) AppendReplayChunk(_ context.Context, _ string, req domain.ReplayChunkRequest) error {
	f.chunks = append(f.chunks, req)
	return nil
}

func setupRouter(t *testing.T) (*gin.Engine, *fakeStore, *storage.EventBuffer) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	store := &fakeStore{}
	buf := storage.NewEventBuffer(testBufferCapacity)
	h := handler.NewTelemetryHandler(store, buf, logger.NewNop())

	v1 := r.Group("/api/v1")
	v1.POST("/visitors", h.EnsureVisitor)
	v1.POST("/visitors/:id/touch", h.TouchVisitor)
	v1.POST("/sessions", h.CreateSession)
	v1.POST("/sessions/:id/close", h.CloseSession)
	v1.POST("/pageviews", h.RecordPageView)
	v1.PATCH("/pageviews", h.UpdatePageView)
	v1.POST("/events", h.RecordEvent)
	v1.POST("/journeys", h.StartJourney)
	v1.POST("/journeys/:id/steps", h.RecordJourneyStep)
	v1.POST("/journeys/:id/replay", h.AppendReplayChunk)

	return r, store, buf
}

func postJSON(t *testing.T, r *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	return w
}

func TestEnsureVisitor_ReturnsID(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/visitors", domain.EnsureVisitorRequest{
		Fingerprint: "fp-abc",
		Device:      domain.DeviceInfo{DeviceType: "desktop"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp domain.EnsureVisitorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.VisitorID != "vis-1" {
		t.Fatalf("expected visitor id vis-1, got %q", resp.VisitorID)
	}
	if len(store.visitors) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(store.visitors))
	}
}

func TestEnsureVisitor_MissingFingerprint(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/visitors", domain.EnsureVisitorRequest{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(store.visitors) != 0 {
		t.Fatalf("expected no upsert, got %d", len(store.visitors))
	}
}

func TestTouchVisitor(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/visitors/vis-1/touch", http.NoBody)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(store.touched) != 1 || store.touched[0] != "vis-1" {
		t.Fatalf("expected touch for vis-1, got %v", store.touched)
	}
}

func TestCreateSession_CountryFromEdgeHeader(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	payload, _ := json.Marshal(domain.CreateSessionRequest{
		VisitorID: "vis-1",
		EntryPage: "/",
		UTM:       domain.UTMParams{Source: "newsletter"},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("CF-IPCountry", "CA")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if len(store.countries) != 1 || store.countries[0] != "CA" {
		t.Fatalf("expected country CA, got %v", store.countries)
	}
	if store.sessions[0].UTM.Source != "newsletter" {
		t.Fatalf("expected utm source to pass through, got %q", store.sessions[0].UTM.Source)
	}
}

func TestCreateSession_CountryFallsBackToUnknown(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/sessions", domain.CreateSessionRequest{
		VisitorID: "vis-1",
		EntryPage: "/",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if store.countries[0] != "unknown" {
		t.Fatalf("expected country unknown, got %q", store.countries[0])
	}
}

func TestCloseSession(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/sessions/sess-1/close", domain.CloseSessionRequest{
		ExitPage:        "/contact",
		DurationSeconds: 90,
	})

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(store.closed) != 1 || store.closed[0].ExitPage != "/contact" {
		t.Fatalf("expected close with exit /contact, got %v", store.closed)
	}
}

func TestRecordPageView(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/pageviews", domain.PageViewRequest{
		SessionID: "sess-1",
		VisitorID: "vis-1",
		Path:      "/pricing",
		Title:     "Pricing",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if len(store.pageViews) != 1 {
		t.Fatalf("expected 1 page view, got %d", len(store.pageViews))
	}
}

func TestUpdatePageView(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPatch, "/api/v1/pageviews", domain.PageViewUpdate{
		SessionID:   "sess-1",
		Path:        "/pricing",
		TimeOnPage:  42,
		ScrollDepth: 75,
	})

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(store.updates) != 1 || store.updates[0].ScrollDepth != 75 {
		t.Fatalf("expected update with depth 75, got %v", store.updates)
	}
}

func TestRecordEvent_Buffered(t *testing.T) {
	r, _, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/events", domain.EventRequest{
		SessionID: "sess-1",
		VisitorID: "vis-1",
		Path:      "/pricing",
		EventType: domain.EventContactClick,
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if buf.Len() != 1 {
		t.Fatalf("expected 1 buffered event, got %d", buf.Len())
	}
}

func TestRecordEvent_UnknownTypeRejected(t *testing.T) {
	r, _, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/events", domain.EventRequest{
		SessionID: "sess-1",
		EventType: domain.EventType("teleport"),
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown event type, got %d", w.Code)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no buffered events, got %d", buf.Len())
	}
}

func TestStartJourney(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/journeys", domain.JourneyStartRequest{
		JourneyID:  "jrn-1",
		EntryPage:  "/",
		DeviceType: "mobile",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if len(store.journeys) != 1 || store.journeys[0].JourneyID != "jrn-1" {
		t.Fatalf("expected journey jrn-1, got %v", store.journeys)
	}
}

func TestRecordJourneyStep(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/journeys/jrn-1/steps", domain.JourneyStepRequest{
		EventType: "page_view",
		Page:      "/gallery",
	})

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(store.steps) != 1 || store.steps[0].Page != "/gallery" {
		t.Fatalf("expected step on /gallery, got %v", store.steps)
	}
}

func TestAppendReplayChunk(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/journeys/jrn-1/replay", domain.ReplayChunkRequest{
		Samples: []domain.ReplaySample{
			{Offset: 0, Kind: domain.SampleMove, X: 10, Y: 20},
		},
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if len(store.chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(store.chunks))
	}
}

func TestAppendReplayChunk_EmptyRejected(t *testing.T) {
	r, store, buf := setupRouter(t)
	defer buf.Close()

	w := postJSON(t, r, http.MethodPost, "/api/v1/journeys/jrn-1/replay", domain.ReplayChunkRequest{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty chunk, got %d", w.Code)
	}
	if len(store.chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(store.chunks))
	}
}
