package installer

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/agentpm/agentpm/internal/adapter"
	"github.com/agentpm/agentpm/internal/store"
)

// Transaction carries the mutable state of one single-plugin install: the
// plugin being installed and the (original, backup) pairs accumulated so
// far. It is created fresh per install and never shared.
type Transaction struct {
	plugin    string
	root      string
	backupDir string
	store     *store.ManifestStore
	force     bool

	backups []backupPair
	created []string        // paths written that did not exist before
	touched map[string]bool // destinations already backed up or created
}

type backupPair struct {
	original string
	backup   string
}

// NewTransaction creates the transactional executor for one plugin
func NewTransaction(plugin, root, backupDir string, st *store.ManifestStore, force bool) *Transaction {
	return &Transaction{
		plugin:    plugin,
		root:      root,
		backupDir: backupDir,
		store:     st,
		force:     force,
		touched:   make(map[string]bool),
	}
}

// Execute applies one installation plan. Destinations that already exist,
// are not managed by any plugin, and are not in exclude (the previous
// version of this plugin's files) abort the whole plan with a ConflictError
// before anything is written. Overwritten files are backed up first so a
// later failure can restore them.
func (t *Transaction) Execute(plan *adapter.InstallationPlan, exclude map[string]bool) error {
	if plan == nil {
		return nil
	}

	if !t.force {
		if err := t.checkConflicts(plan, exclude); err != nil {
			return err
		}
	}

	for _, dir := range plan.Dirs {
		if err := os.MkdirAll(filepath.Join(t.root, filepath.FromSlash(dir)), 0755); err != nil {
			return err
		}
		t.store.AddDir(t.plugin, dir)
	}

	for _, fw := range plan.Files {
		if err := t.writeFile(fw.Path, []byte(fw.Content), 0644); err != nil {
			return err
		}
	}

	// deterministic copy order
	sources := make([]string, 0, len(plan.Copies))
	for src := range plan.Copies {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		if err := t.copyFile(src, plan.Copies[src]); err != nil {
			return err
		}
	}

	return nil
}

func (t *Transaction) checkConflicts(plan *adapter.InstallationPlan, exclude map[string]bool) error {
	var conflicts []string
	seen := make(map[string]bool)
	managed := t.store.AllManagedPaths()

	check := func(rel string) {
		if seen[rel] {
			return
		}
		seen[rel] = true
		if exclude[rel] || managed[rel] {
			return
		}
		if _, err := os.Stat(filepath.Join(t.root, filepath.FromSlash(rel))); err == nil {
			conflicts = append(conflicts, rel)
		}
	}

	for _, fw := range plan.Files {
		check(fw.Path)
	}
	for _, dst := range plan.Copies {
		check(dst)
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return &ConflictError{Plugin: t.plugin, Paths: conflicts}
	}
	return nil
}

func (t *Transaction) writeFile(rel string, content []byte, mode os.FileMode) error {
	abs := filepath.Join(t.root, filepath.FromSlash(rel))
	if err := t.backupIfExists(rel, abs); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(abs, content, mode); err != nil {
		return err
	}
	t.store.AddFile(t.plugin, rel)
	return nil
}

func (t *Transaction) copyFile(src, rel string) error {
	abs := filepath.Join(t.root, filepath.FromSlash(rel))
	if err := t.backupIfExists(rel, abs); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	if err := copyBytes(src, abs); err != nil {
		return err
	}
	t.store.AddFile(t.plugin, rel)
	return nil
}

// backupIfExists copies an existing destination verbatim into the backup
// area, mirroring its relative path, before it gets overwritten. Only the
// first write to a destination counts: later writes by the same transaction
// must not replace the pre-install bytes with intermediate content.
func (t *Transaction) backupIfExists(rel, abs string) error {
	if t.touched[rel] {
		return nil
	}
	t.touched[rel] = true

	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			t.created = append(t.created, abs)
			return nil
		}
		return err
	}

	backup := filepath.Join(t.backupDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(backup), 0755); err != nil {
		return err
	}
	if err := copyBytes(abs, backup); err != nil {
		return err
	}
	t.backups = append(t.backups, backupPair{original: abs, backup: backup})
	return nil
}

// Rollback restores every backup pair in reverse order and removes files
// this transaction created, leaving the tree as it was before Execute.
func (t *Transaction) Rollback() error {
	var firstErr error

	for i := len(t.created) - 1; i >= 0; i-- {
		if err := os.Remove(t.created[i]); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}

	for i := len(t.backups) - 1; i >= 0; i-- {
		pair := t.backups[i]
		if err := os.MkdirAll(filepath.Dir(pair.original), 0755); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := copyBytes(pair.backup, pair.original); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		os.Remove(pair.backup)
	}

	t.backups = nil
	t.created = nil
	t.touched = make(map[string]bool)
	os.RemoveAll(t.backupDir)
	return firstErr
}

// Discard drops all backups after a successful install
func (t *Transaction) Discard() {
	t.backups = nil
	t.created = nil
	t.touched = make(map[string]bool)
	os.RemoveAll(t.backupDir)
}

func copyBytes(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
