// Package domain defines the telemetry records exchanged between the tracker
// engine and the ingestion collector.
package domain

// EventType enumerates the discrete interaction events the tracker emits.
type EventType string

const (
	EventContactClick EventType = "contact_click"
	EventFormSubmit   EventType = "form_submit"
	EventMediaPlay    EventType = "media_play"
	EventGalleryOpen  EventType = "gallery_open"
	EventContentView  EventType = "content_view"
	EventPlanView     EventType = "plan_view"
	EventLinkClick    EventType = "link_click"
)

// Valid reports whether the event type is one of the known interaction kinds.
func (e EventType) Valid() bool {
	switch e {
	case EventContactClick, EventFormSubmit, EventMediaPlay, EventGalleryOpen,
		EventContentView, EventPlanView, EventLinkClick:
		return true
	}
	return false
}

// SampleKind enumerates low-level replay sample kinds.
type SampleKind string

const (
	SampleMove   SampleKind = "move"
	SampleClick  SampleKind = "click"
	SampleScroll SampleKind = "scroll"
)

// DeviceInfo describes the visiting device as probed by the tracker host.
type DeviceInfo struct {
	DeviceType       string `json:"device_type"`
	Browser          string `json:"browser"`
	OS               string `json:"os"`
	ScreenResolution string `json:"screen_resolution"`
}

// UTMParams carries campaign attribution parameters captured from the
// entry navigation context.
type UTMParams struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

// Page is the navigation context for a single page the visitor lands on.
type Page struct {
	Path string `json:"path"`
	// Title is the document title at entry time.
	Title string `json:"title"`
	// Referrer is the external referrer, meaningful only on the entry page.
	Referrer string `json:"referrer,omitempty"`
	// InternalReferrer is the previous path within the site, if any.
	InternalReferrer string `json:"internal_referrer,omitempty"`
	// UTM attribution parsed from the landing URL.
	UTM UTMParams `json:"utm"`
}

// EnsureVisitorRequest upserts a visitor record keyed by fingerprint.
type EnsureVisitorRequest struct {
	Fingerprint string     `json:"fingerprint"`
	Device      DeviceInfo `json:"device"`
}

// EnsureVisitorResponse returns the durable visitor id for a fingerprint.
type EnsureVisitorResponse struct {
	VisitorID string `json:"visitor_id"`
}

// CreateSessionRequest opens a new session for a visitor.
type CreateSessionRequest struct {
	VisitorID string    `json:"visitor_id"`
	EntryPage string    `json:"entry_page"`
	Referrer  string    `json:"referrer,omitempty"`
	UTM       UTMParams `json:"utm"`
}

// CreateSessionResponse returns the id of the newly opened session.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CloseSessionRequest finalizes a session.
type CloseSessionRequest struct {
	ExitPage        string `json:"exit_page"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// PageViewRequest records a page entry within a session.
type PageViewRequest struct {
	SessionID        string `json:"session_id"`
	VisitorID        string `json:"visitor_id"`
	Path             string `json:"path"`
	Title            string `json:"title"`
	InternalReferrer string `json:"internal_referrer,omitempty"`
}

// PageViewResponse returns the id of the recorded page view.
type PageViewResponse struct {
	PageViewID string `json:"page_view_id"`
}

// PageViewUpdate carries accumulated metrics back to the most recent page
// view row for the (session, path) pair. Updates are idempotent; repeated
// flushes before navigation are safe.
type PageViewUpdate struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	// TimeOnPage is elapsed seconds since page entry.
	TimeOnPage int64 `json:"time_on_page"`
	// ScrollDepth is the maximum depth percentage reached, 0-100.
	ScrollDepth int `json:"scroll_depth"`
}

// EventRequest is a discrete interaction event. Append-only.
type EventRequest struct {
	SessionID    string         `json:"session_id"`
	VisitorID    string         `json:"visitor_id"`
	Path         string         `json:"path"`
	EventType    EventType      `json:"event_type"`
	ElementID    string         `json:"element_id,omitempty"`
	ElementLabel string         `json:"element_label,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// JourneyStartRequest registers a journey as active. Country is resolved by
// the collector from the network address, never supplied by the tracker.
type JourneyStartRequest struct {
	JourneyID  string `json:"journey_id"`
	EntryPage  string `json:"entry_page"`
	DeviceType string `json:"device_type"`
}

// JourneyStepRequest appends one navigation/interaction step to a journey
// and advances its exit page and step count.
type JourneyStepRequest struct {
	EventType string `json:"event_type"`
	Page      string `json:"page"`
}

// ReplaySample is one timestamped low-level interaction sample. Offset is
// milliseconds since the recorder started observing.
type ReplaySample struct {
	Offset int64      `json:"offset"`
	Kind   SampleKind `json:"kind"`
	X      int        `json:"x"`
	Y      int        `json:"y"`
}

// ReplayChunkRequest appends a batch of samples to a journey's replay
// timeline. Chunks are write-once; playback concatenates them in arrival
// order.
type ReplayChunkRequest struct {
	Samples []ReplaySample `json:"samples"`
}
