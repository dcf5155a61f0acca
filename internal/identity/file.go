package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// filePerm is the mode for the persisted identity file.
const filePerm = 0o600

// FileStore persists identity values as a flat JSON object on disk, the
// host-side analogue of browser local storage. A missing or corrupt file is
// treated as empty; writes are best effort and never surface errors to the
// tracker.
type FileStore struct {
	path   string
	values map[string]string
}

// NewFileStore loads the identity file at path, creating parent directories
// on first write. Load failures degrade to an empty store.
func NewFileStore(path string) *FileStore {
	s := &FileStore{
		path:   path,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	// Corrupt contents are discarded; the cache will be rebuilt.
	_ = json.Unmarshal(data, &s.values)
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return s
}

func (s *FileStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) {
	s.values[key] = value
	s.persist()
}

func (s *FileStore) Delete(key string) {
	delete(s.values, key)
	s.persist()
}

// persist writes the full value set out. Last write wins; failures are
// ignored because the store only holds cached ids and timestamps.
func (s *FileStore) persist() {
	data, err := json.Marshal(s.values)
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o750)
	_ = os.WriteFile(s.path, data, filePerm)
}
