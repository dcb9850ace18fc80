package store

import (
	"path/filepath"
	"testing"
)

func TestLockStore_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apm.lock")

	s := NewLockStore(path)
	s.SetEntry("reviewer", LockEntry{
		Version:   "1.2.0",
		Locator:   "https://plugins.example.com/reviewer/reviewer-1.2.0.tar.gz",
		Integrity: "sha256-abc",
	})

	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadLockStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if !loaded.IsLocked("reviewer") {
		t.Fatal("reviewer not locked after reload")
	}
	if got := loaded.LockedVersion("reviewer"); got != "1.2.0" {
		t.Errorf("locked version = %q, want 1.2.0", got)
	}
	entry, ok := loaded.Entry("reviewer")
	if !ok || entry.Integrity != "sha256-abc" {
		t.Errorf("entry = %+v, ok = %v", entry, ok)
	}
}

func TestLockStore_Absent(t *testing.T) {
	s, err := LoadLockStore(filepath.Join(t.TempDir(), "apm.lock"))
	if err != nil {
		t.Fatal(err)
	}
	if s.IsLocked("anything") {
		t.Error("empty store reports a lock")
	}
	if v := s.LockedVersion("anything"); v != "" {
		t.Errorf("locked version = %q, want empty", v)
	}
}

func TestLockStore_OverwriteAndRemove(t *testing.T) {
	s := NewLockStore("")
	s.SetEntry("p", LockEntry{Version: "1.0.0", Locator: "file:/a"})
	s.SetEntry("p", LockEntry{Version: "2.0.0", Locator: "file:/b"})

	entry, _ := s.Entry("p")
	if entry.Version != "2.0.0" || entry.Locator != "file:/b" {
		t.Errorf("entry not replaced whole: %+v", entry)
	}

	s.RemoveEntry("p")
	if s.IsLocked("p") {
		t.Error("entry survived removal")
	}
}
