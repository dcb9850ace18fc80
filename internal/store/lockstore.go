package store

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// LockEntry pins the exact version, locator and integrity digest last
// installed for one plugin.
type LockEntry struct {
	Version   string `toml:"version"`
	Locator   string `toml:"locator"`
	Integrity string `toml:"integrity,omitempty"`
}

// LockStore is the persisted lock file (apm.lock)
type LockStore struct {
	Plugins map[string]LockEntry `toml:"plugins"`

	path string `toml:"-"`
}

// NewLockStore creates an empty lock store persisted at path
func NewLockStore(path string) *LockStore {
	return &LockStore{
		Plugins: make(map[string]LockEntry),
		path:    path,
	}
}

// LoadLockStore reads the lock file, returning an empty store when absent
func LoadLockStore(path string) (*LockStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLockStore(path), nil
		}
		return nil, err
	}

	s := NewLockStore(path)
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.Plugins == nil {
		s.Plugins = make(map[string]LockEntry)
	}
	return s, nil
}

// Save writes the whole lock file
func (s *LockStore) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// IsLocked reports whether a plugin has a lock entry
func (s *LockStore) IsLocked(plugin string) bool {
	_, ok := s.Plugins[plugin]
	return ok
}

// LockedVersion returns the locked version for a plugin, or ""
func (s *LockStore) LockedVersion(plugin string) string {
	return s.Plugins[plugin].Version
}

// Entry returns the full lock entry for a plugin
func (s *LockStore) Entry(plugin string) (LockEntry, bool) {
	e, ok := s.Plugins[plugin]
	return e, ok
}

// SetEntry replaces a plugin's lock entry whole
func (s *LockStore) SetEntry(plugin string, entry LockEntry) {
	s.Plugins[plugin] = entry
}

// RemoveEntry drops a plugin's lock entry
func (s *LockStore) RemoveEntry(plugin string) {
	delete(s.Plugins, plugin)
}
