package engine

import (
	"time"

	"github.com/brightpath/pulse/internal/domain"
)

// fullDepth is the scroll depth reported for pages without scrollable
// overflow.
const fullDepth = 100

// PageMetricsTracker accumulates time-on-page and maximum scroll depth for
// the currently active page. Both metrics are monotone until the page view
// is finalized by a flush trigger, after which the counters reset for the
// next page.
type PageMetricsTracker struct {
	now Clock

	path      string
	enteredAt time.Time
	maxDepth  int
	active    bool
}

// NewPageMetricsTracker creates an idle tracker.
func NewPageMetricsTracker(now Clock) *PageMetricsTracker {
	return &PageMetricsTracker{now: now}
}

// Enter starts accumulating for a new page, discarding any previous state.
// The caller flushes the old page first.
func (t *PageMetricsTracker) Enter(page domain.Page) {
	t.path = page.Path
	t.enteredAt = t.now()
	t.maxDepth = 0
	t.active = true
}

// ObserveScroll folds one scroll position into the maximum depth. Depth is
// scrollTop over the scrollable overflow, as a percentage clamped to 0-100;
// a page with no overflow counts as fully scrolled.
func (t *PageMetricsTracker) ObserveScroll(scrollTop, scrollHeight, viewport int) {
	if !t.active {
		return
	}

	depth := scrollDepth(scrollTop, scrollHeight, viewport)
	if depth > t.maxDepth {
		t.maxDepth = depth
	}
}

// Snapshot returns the accumulated metrics for the active page. ok is false
// when no page is being tracked.
func (t *PageMetricsTracker) Snapshot() (update domain.PageViewUpdate, ok bool) {
	if !t.active {
		return domain.PageViewUpdate{}, false
	}

	elapsed := int64(t.now().Sub(t.enteredAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	return domain.PageViewUpdate{
		Path:        t.path,
		TimeOnPage:  elapsed,
		ScrollDepth: t.maxDepth,
	}, true
}

// Reset stops tracking until the next Enter.
func (t *PageMetricsTracker) Reset() {
	t.active = false
	t.path = ""
	t.maxDepth = 0
}

func scrollDepth(scrollTop, scrollHeight, viewport int) int {
	overflow := scrollHeight - viewport
	if overflow <= 0 {
		return fullDepth
	}

	depth := scrollTop * fullDepth / overflow
	if depth < 0 {
		return 0
	}
	if depth > fullDepth {
		return fullDepth
	}
	return depth
}
