// Package identity provides the browser-local cache the tracker uses to
// carry visitor and session state across page loads. Values are caches of
// ids and timestamps, never authoritative counts, so every implementation
// is last-write-wins.
package identity

// Well-known keys. The layout is flat scalar strings with no schema
// versioning; the backend remains the source of truth.
const (
	KeyFingerprint  = "fingerprint"
	KeyVisitorID    = "visitor_id"
	KeySessionID    = "session_id"
	KeySessionStart = "session_start"
	KeyLastActivity = "last_activity"
	KeyLastPage     = "last_page"
)

// Store is a persisted scalar key/value cache scoped to one browser
// identity. Implementations must tolerate concurrent handlers reading and
// writing without coordination.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)
	// Set stores the value for key, replacing any previous value.
	Set(key, value string)
	// Delete removes the value for key. Deleting an absent key is a no-op.
	Delete(key string)
}

// MemStore is an in-memory Store used in tests and for hosts that do not
// persist identity across runs.
type MemStore struct {
	values map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *MemStore) Set(key, value string) {
	s.values[key] = value
}

func (s *MemStore) Delete(key string) {
	delete(s.values, key)
}
