package identity_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brightpath/pulse/internal/identity"
)

func TestMemStore_SetGetDelete(t *testing.T) {
	s := identity.NewMemStore()

	if _, ok := s.Get(identity.KeyVisitorID); ok {
		t.Fatal("expected empty store to have no visitor id")
	}

	s.Set(identity.KeyVisitorID, "v-1")
	got, ok := s.Get(identity.KeyVisitorID)
	if !ok || got != "v-1" {
		t.Fatalf("expected v-1, got %q (present=%v)", got, ok)
	}

	// Last write wins.
	s.Set(identity.KeyVisitorID, "v-2")
	got, _ = s.Get(identity.KeyVisitorID)
	if got != "v-2" {
		t.Fatalf("expected v-2 after overwrite, got %q", got)
	}

	s.Delete(identity.KeyVisitorID)
	if _, ok := s.Get(identity.KeyVisitorID); ok {
		t.Fatal("expected key to be gone after delete")
	}
}

func TestFileStore_PersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "identity.json")

	s := identity.NewFileStore(path)
	s.Set(identity.KeyFingerprint, "fp-abc")
	s.Set(identity.KeySessionID, "s-1")

	reloaded := identity.NewFileStore(path)
	got, ok := reloaded.Get(identity.KeyFingerprint)
	if !ok || got != "fp-abc" {
		t.Fatalf("expected fp-abc after reload, got %q (present=%v)", got, ok)
	}
	got, _ = reloaded.Get(identity.KeySessionID)
	if got != "s-1" {
		t.Fatalf("expected s-1 after reload, got %q", got)
	}
}

func TestFileStore_CorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	s := identity.NewFileStore(path)
	if _, ok := s.Get(identity.KeyFingerprint); ok {
		t.Fatal("expected corrupt file to load as empty store")
	}

	// Store must remain writable after a corrupt load.
	s.Set(identity.KeyFingerprint, "fp-new")
	got, _ := s.Get(identity.KeyFingerprint)
	if got != "fp-new" {
		t.Fatalf("expected fp-new, got %q", got)
	}
}
