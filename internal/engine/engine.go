// Package engine implements the client telemetry and session-lifecycle
// engine: visitor identification across page loads, bounded-lifetime
// sessions, per-page engagement metrics, discrete interaction events, and
// journey recording with optional replay capture.
//
// The engine is owned by a single host goroutine (a webview shell, kiosk
// runtime, or synthetic-visit agent) that feeds it navigation and
// interaction callbacks; it is not safe for concurrent use. All backend
// writes except identity establishment are fire-and-forget through an
// internal dispatcher, so no callback ever blocks on the network.
package engine

import (
	"context"
	"time"

	"github.com/brightpath/pulse/internal/domain"
	"github.com/brightpath/pulse/internal/gateway"
	"github.com/brightpath/pulse/internal/identity"
	"github.com/brightpath/pulse/internal/logger"
)

// Clock returns the current time. Injectable for deterministic tests.
type Clock func() time.Time

// Default engine configuration values.
const (
	defaultInactivityTimeout   = 30 * time.Minute
	defaultReplayChunkSize     = 200
	defaultReplayFlushInterval = 10 * time.Second
	defaultPointerSampleEvery  = 50 * time.Millisecond
	defaultDispatchBuffer      = 256
	defaultCallTimeout         = 2 * time.Second
)

// journeyStepPageView is the journey step type recorded for navigations.
const journeyStepPageView = "page_view"

// Config is the immutable engine configuration, fixed at construction.
type Config struct {
	// InactivityTimeout is the fixed window after which a session expires,
	// measured from last recorded activity.
	InactivityTimeout time.Duration
	// ReplayChunkSize is the sample-count flush threshold for replay chunks.
	ReplayChunkSize int
	// ReplayFlushInterval is the time flush threshold for replay chunks.
	ReplayFlushInterval time.Duration
	// PointerSampleEvery bounds the pointer-move sampling rate.
	PointerSampleEvery time.Duration
	// DispatchBuffer is the capacity of the fire-and-forget write queue.
	DispatchBuffer int
	// CallTimeout bounds each backend write.
	CallTimeout time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now Clock
}

func (c *Config) setDefaults() {
	if c.InactivityTimeout == 0 {
		c.InactivityTimeout = defaultInactivityTimeout
	}
	if c.ReplayChunkSize == 0 {
		c.ReplayChunkSize = defaultReplayChunkSize
	}
	if c.ReplayFlushInterval == 0 {
		c.ReplayFlushInterval = defaultReplayFlushInterval
	}
	if c.PointerSampleEvery == 0 {
		c.PointerSampleEvery = defaultPointerSampleEvery
	}
	if c.DispatchBuffer == 0 {
		c.DispatchBuffer = defaultDispatchBuffer
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Engine owns all tracker components and the visitor/session state for one
// page-load lifecycle. Construction wires everything; Start establishes
// identity and the session.
type Engine struct {
	cfg Config
	gw  gateway.Gateway
	ids identity.Store
	log logger.Logger

	disp         *dispatcher
	fingerprints *FingerprintResolver
	registrar    *VisitorRegistrar
	sessions     *SessionManager
	metrics      *PageMetricsTracker
	events       *EventEmitter
	journey      *JourneyRecorder
	replay       *ReplayRecorder

	device    domain.DeviceInfo
	visitorID string
	sessionID string
	page      domain.Page
	started   bool
	disabled  bool
}

// New constructs an engine. The signal source may be nil, in which case the
// fingerprint falls back to a random token.
func New(cfg Config, gw gateway.Gateway, ids identity.Store, src SignalSource, device domain.DeviceInfo, log logger.Logger) *Engine {
	cfg.setDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	disp := newDispatcher(cfg.DispatchBuffer, cfg.CallTimeout, log)

	return &Engine{
		cfg:          cfg,
		gw:           gw,
		ids:          ids,
		log:          log,
		disp:         disp,
		fingerprints: NewFingerprintResolver(ids, src, log),
		registrar:    NewVisitorRegistrar(gw, ids, disp, log),
		sessions:     NewSessionManager(gw, ids, cfg.InactivityTimeout, cfg.Now, log),
		metrics:      NewPageMetricsTracker(cfg.Now),
		events:       NewEventEmitter(gw, disp, log),
		journey:      NewJourneyRecorder(gw, disp, log),
		replay:       NewReplayRecorder(gw, disp, cfg.ReplayChunkSize, cfg.ReplayFlushInterval, cfg.PointerSampleEvery, cfg.Now, log),
		device:       device,
	}
}

// Start resolves identity, establishes the session, and begins tracking the
// entry page. When identity resolution fails the engine degrades to a no-op
// for the whole page load; the worst observable symptom is under-counted
// analytics, never a broken page.
func (e *Engine) Start(ctx context.Context, page domain.Page) {
	if e.started {
		return
	}
	e.started = true
	e.disp.start()

	fingerprint := e.fingerprints.Resolve()

	visitorID, ok := e.registrar.EnsureVisitor(ctx, fingerprint, e.device)
	if !ok {
		e.disabled = true
		return
	}
	e.visitorID = visitorID

	e.journey.Start(page.Path, e.device.DeviceType)
	e.replay.Bind(e.journey.ID())

	e.beginPage(ctx, page)
}

// Navigate flushes the old page and begins tracking the new one. Session
// validity is re-checked on every navigation, so a tab resumed after the
// inactivity window rotates to a fresh session here.
func (e *Engine) Navigate(ctx context.Context, page domain.Page) {
	if !e.started || e.disabled {
		return
	}
	if page.InternalReferrer == "" {
		page.InternalReferrer = e.page.Path
	}

	e.flushMetrics()
	e.journey.Step(journeyStepPageView, page.Path)
	e.beginPage(ctx, page)
}

// ObserveScroll folds a scroll position into the current page's metrics and
// the replay stream, and counts as session activity.
func (e *Engine) ObserveScroll(scrollTop, scrollHeight, viewport int) {
	if !e.started || e.disabled {
		return
	}

	e.metrics.ObserveScroll(scrollTop, scrollHeight, viewport)
	e.replay.Observe(domain.SampleScroll, 0, scrollTop)
	if e.sessionID != "" {
		e.sessions.Touch(e.page.Path)
	}
}

// PointerMove feeds a pointer position into the replay stream.
func (e *Engine) PointerMove(x, y int) {
	if !e.started || e.disabled {
		return
	}
	e.replay.Observe(domain.SampleMove, x, y)
}

// PointerClick feeds click coordinates into the replay stream.
func (e *Engine) PointerClick(x, y int) {
	if !e.started || e.disabled {
		return
	}
	e.replay.Observe(domain.SampleClick, x, y)
}

// Emit records a discrete interaction event against the current page. Safe
// to call in any state; without visitor and session context it is a silent
// no-op that issues no network call.
func (e *Engine) Emit(eventType domain.EventType, elementID, elementLabel string, metadata map[string]any) {
	if !e.started || e.disabled {
		return
	}

	e.events.Emit(e.sessionID, e.visitorID, e.page.Path, eventType, elementID, elementLabel, metadata)
	e.journey.Step(string(eventType), e.page.Path)
	if e.sessionID != "" {
		e.sessions.Touch(e.page.Path)
	}
}

// Hidden handles the page-visibility-hidden signal, the primary best-effort
// flush point since unload is unreliable on mobile.
func (e *Engine) Hidden() {
	if !e.started || e.disabled {
		return
	}

	e.flushMetrics()
	e.replay.Flush()
	if e.sessionID != "" {
		e.sessions.Touch(e.page.Path)
	}
}

// Unload handles tab close or navigation away from the site: metrics and
// replay buffers are flushed and the session is explicitly terminated, all
// best effort. If the process dies before delivery, the session is closed
// lazily when the next one opens.
func (e *Engine) Unload(ctx context.Context) {
	if !e.started || e.disabled {
		return
	}

	e.flushMetrics()
	e.metrics.Reset()
	e.replay.Flush()

	if e.sessionID != "" {
		e.sessions.CloseActive(ctx, e.page.Path)
		e.sessionID = ""
	}
}

// Close drains the dispatch queue and stops the worker. The engine is not
// usable afterwards.
func (e *Engine) Close() {
	e.disp.close()
}

// Disabled reports whether identity resolution failed and the engine is
// no-oping for this page load.
func (e *Engine) Disabled() bool {
	return e.disabled
}

// SessionID returns the current session id, "" when session tracking is
// unavailable.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// JourneyID returns the active journey id.
func (e *Engine) JourneyID() string {
	return e.journey.ID()
}

// beginPage establishes the session for a page and starts its trackers.
// Session failure disables only session-scoped tracking; the journey keeps
// recording.
func (e *Engine) beginPage(ctx context.Context, page domain.Page) {
	e.page = page

	sessionID, ok := e.sessions.Ensure(ctx, e.visitorID, page)
	if !ok {
		e.sessionID = ""
		e.metrics.Reset()
		return
	}
	e.sessionID = sessionID

	req := domain.PageViewRequest{
		SessionID:        sessionID,
		VisitorID:        e.visitorID,
		Path:             page.Path,
		Title:            page.Title,
		InternalReferrer: page.InternalReferrer,
	}
	e.disp.enqueue("record_page_view", func(ctx context.Context) error {
		return e.gw.RecordPageView(ctx, req)
	})

	e.metrics.Enter(page)
	e.sessions.Touch(page.Path)
}

// flushMetrics writes the accumulated metrics of the current page back to
// its page view row. Updates target the most recent (session, path) row, so
// repeated flushes before navigation are safe.
func (e *Engine) flushMetrics() {
	if e.sessionID == "" {
		return
	}

	update, ok := e.metrics.Snapshot()
	if !ok {
		return
	}
	update.SessionID = e.sessionID

	e.disp.enqueue("update_page_view", func(ctx context.Context) error {
		return e.gw.UpdatePageView(ctx, update)
	})
}
