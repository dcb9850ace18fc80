// Package store persists apm's two systems of record: the managed-file
// manifest (which paths belong to which plugin) and the version lock.
package store

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// ManagedEntry records everything apm created on behalf of one plugin
type ManagedEntry struct {
	// Files and Dirs are slash-separated paths relative to the project root
	Files []string `toml:"files,omitempty"`
	Dirs  []string `toml:"dirs,omitempty"`

	// Servers are auxiliary server names registered for this plugin
	Servers []string `toml:"servers,omitempty"`

	// Permissions are permission patterns granted for this plugin
	Permissions []string `toml:"permissions,omitempty"`
}

// ManifestStore is the sole source of truth for "is this file managed"
type ManifestStore struct {
	Plugins map[string]*ManagedEntry `toml:"plugins"`

	path string `toml:"-"`
}

// NewManifestStore creates an empty store persisted at path
func NewManifestStore(path string) *ManifestStore {
	return &ManifestStore{
		Plugins: make(map[string]*ManagedEntry),
		path:    path,
	}
}

// LoadManifestStore reads the managed-file state, returning an empty store
// when the file does not exist yet.
func LoadManifestStore(path string) (*ManifestStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifestStore(path), nil
		}
		return nil, err
	}

	s := NewManifestStore(path)
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.Plugins == nil {
		s.Plugins = make(map[string]*ManagedEntry)
	}
	return s, nil
}

// Save writes the whole store, creating parent directories as needed
func (s *ManifestStore) Save() error {
	for _, entry := range s.Plugins {
		sort.Strings(entry.Files)
		sort.Strings(entry.Dirs)
		sort.Strings(entry.Servers)
		sort.Strings(entry.Permissions)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Entry returns the managed entry for a plugin, or nil
func (s *ManifestStore) Entry(plugin string) *ManagedEntry {
	return s.Plugins[plugin]
}

func (s *ManifestStore) entry(plugin string) *ManagedEntry {
	e, ok := s.Plugins[plugin]
	if !ok {
		e = &ManagedEntry{}
		s.Plugins[plugin] = e
	}
	return e
}

// AddFile records a file path as managed for a plugin
func (s *ManifestStore) AddFile(plugin, rel string) {
	e := s.entry(plugin)
	e.Files = appendUnique(e.Files, filepath.ToSlash(rel))
}

// AddDir records a directory as managed for a plugin
func (s *ManifestStore) AddDir(plugin, rel string) {
	e := s.entry(plugin)
	e.Dirs = appendUnique(e.Dirs, filepath.ToSlash(rel))
}

// AddServer records an auxiliary server registration for a plugin
func (s *ManifestStore) AddServer(plugin, name string) {
	e := s.entry(plugin)
	e.Servers = appendUnique(e.Servers, name)
}

// AddPermission records a granted permission pattern for a plugin
func (s *ManifestStore) AddPermission(plugin, pattern string) {
	e := s.entry(plugin)
	e.Permissions = appendUnique(e.Permissions, pattern)
}

// RemovePlugin clears a plugin's entry entirely
func (s *ManifestStore) RemovePlugin(plugin string) {
	delete(s.Plugins, plugin)
}

// ManagedFiles returns a copy of the plugin's managed file paths
func (s *ManifestStore) ManagedFiles(plugin string) []string {
	e, ok := s.Plugins[plugin]
	if !ok {
		return nil
	}
	return append([]string(nil), e.Files...)
}

// ManagedDirs returns a copy of the plugin's managed directories
func (s *ManifestStore) ManagedDirs(plugin string) []string {
	e, ok := s.Plugins[plugin]
	if !ok {
		return nil
	}
	return append([]string(nil), e.Dirs...)
}

// AllManagedPaths returns every managed file path flattened across plugins
func (s *ManifestStore) AllManagedPaths() map[string]bool {
	all := make(map[string]bool)
	for _, e := range s.Plugins {
		for _, f := range e.Files {
			all[f] = true
		}
	}
	return all
}

// IsManaged reports whether any plugin owns the given file path
func (s *ManifestStore) IsManaged(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, e := range s.Plugins {
		for _, f := range e.Files {
			if f == rel {
				return true
			}
		}
	}
	return false
}

// RevocablePermissions returns the plugin's granted permissions that no
// other plugin also references, i.e. those safe to revoke on removal.
func (s *ManifestStore) RevocablePermissions(plugin string) []string {
	return s.revocable(plugin, func(e *ManagedEntry) []string { return e.Permissions })
}

// RevocableServers returns the plugin's server registrations that no other
// plugin also references.
func (s *ManifestStore) RevocableServers(plugin string) []string {
	return s.revocable(plugin, func(e *ManagedEntry) []string { return e.Servers })
}

func (s *ManifestStore) revocable(plugin string, get func(*ManagedEntry) []string) []string {
	own, ok := s.Plugins[plugin]
	if !ok {
		return nil
	}

	others := make(map[string]bool)
	for name, e := range s.Plugins {
		if name == plugin {
			continue
		}
		for _, v := range get(e) {
			others[v] = true
		}
	}

	var safe []string
	for _, v := range get(own) {
		if !others[v] {
			safe = append(safe, v)
		}
	}
	return safe
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
