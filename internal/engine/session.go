package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/brightpath/pulse/internal/domain"
	"github.com/brightpath/pulse/internal/gateway"
	"github.com/brightpath/pulse/internal/identity"
	"github.com/brightpath/pulse/internal/logger"
)

// SessionManager governs session creation, renewal, expiry, and termination.
// The state machine is NoSession -> Active -> Closed; expiry is measured
// from the last recorded activity, not from session start, and a session
// abandoned by a killed tab is closed lazily when the next one opens.
type SessionManager struct {
	gw      gateway.Gateway
	ids     identity.Store
	log     logger.Logger
	now     Clock
	timeout time.Duration
}

// NewSessionManager creates a session manager with the given inactivity
// timeout.
func NewSessionManager(gw gateway.Gateway, ids identity.Store, timeout time.Duration, now Clock, log logger.Logger) *SessionManager {
	return &SessionManager{gw: gw, ids: ids, log: log, now: now, timeout: timeout}
}

// Ensure returns the id of a valid active session, opening a new one when
// none exists or the cached one has gone stale. A stale session is closed
// server-side first, with its exit page set to the last recorded path. On
// backend failure it returns ("", false); session-scoped tracking no-ops
// for this page load.
func (m *SessionManager) Ensure(ctx context.Context, visitorID string, page domain.Page) (string, bool) {
	cached, ok := m.ids.Get(identity.KeySessionID)
	if ok && cached != "" {
		if m.fresh() {
			m.Touch(page.Path)
			return cached, true
		}
		m.closeStale(ctx, cached)
	}

	id, err := m.gw.CreateSession(ctx, domain.CreateSessionRequest{
		VisitorID: visitorID,
		EntryPage: page.Path,
		Referrer:  page.Referrer,
		UTM:       page.UTM,
	})
	if err != nil {
		m.log.Debug("Session creation failed", logger.Error(err))
		m.clear()
		return "", false
	}

	now := m.now()
	m.ids.Set(identity.KeySessionID, id)
	m.ids.Set(identity.KeySessionStart, formatUnix(now))
	m.ids.Set(identity.KeyLastActivity, formatUnix(now))
	m.ids.Set(identity.KeyLastPage, page.Path)
	return id, true
}

// Touch records activity against the current session. It writes only to the
// identity store; backend writes are driven by the trackers, never by the
// touch itself.
func (m *SessionManager) Touch(path string) {
	m.ids.Set(identity.KeyLastActivity, formatUnix(m.now()))
	if path != "" {
		m.ids.Set(identity.KeyLastPage, path)
	}
}

// CloseActive explicitly terminates the current session, best effort. The
// close is issued synchronously with the caller's context because it is the
// last thing a tab does; failure means the session stays open server-side
// until the next session closes it lazily.
func (m *SessionManager) CloseActive(ctx context.Context, exitPage string) {
	id, ok := m.ids.Get(identity.KeySessionID)
	if !ok || id == "" {
		return
	}

	duration := m.now().Unix() - m.readUnix(identity.KeySessionStart)
	if duration < 0 {
		duration = 0
	}

	if err := m.gw.CloseSession(ctx, id, domain.CloseSessionRequest{
		ExitPage:        exitPage,
		DurationSeconds: duration,
	}); err != nil {
		m.log.Debug("Session close failed", logger.Error(err))
	}

	m.clear()
}

// fresh reports whether the cached session's last activity is within the
// inactivity window. Unparseable state counts as stale.
func (m *SessionManager) fresh() bool {
	last := m.readUnix(identity.KeyLastActivity)
	if last == 0 {
		return false
	}
	return m.now().Sub(time.Unix(last, 0)) < m.timeout
}

// closeStale finalizes an expired session before a new one is opened. The
// end state is inferred retroactively: the exit page is the last path the
// dead tab recorded and the duration runs to its last activity, not to now.
func (m *SessionManager) closeStale(ctx context.Context, sessionID string) {
	start := m.readUnix(identity.KeySessionStart)
	last := m.readUnix(identity.KeyLastActivity)

	duration := last - start
	if duration < 0 {
		duration = 0
	}

	exitPage, _ := m.ids.Get(identity.KeyLastPage)

	if err := m.gw.CloseSession(ctx, sessionID, domain.CloseSessionRequest{
		ExitPage:        exitPage,
		DurationSeconds: duration,
	}); err != nil {
		// Includes the backend no longer knowing the session; either way
		// the cached state is discarded and a fresh session opens.
		m.log.Debug("Stale session close failed", logger.Error(err))
	}
}

func (m *SessionManager) clear() {
	m.ids.Delete(identity.KeySessionID)
	m.ids.Delete(identity.KeySessionStart)
	m.ids.Delete(identity.KeyLastActivity)
	m.ids.Delete(identity.KeyLastPage)
}

func (m *SessionManager) readUnix(key string) int64 {
	raw, ok := m.ids.Get(key)
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
