package installer

import (
	"os"
	"path/filepath"

	apmerrors "github.com/agentpm/agentpm/internal/errors"
)

// Uninstall removes everything the manifest store attributes to a plugin:
// its managed files (with parent-directory pruning), its auxiliary server
// entries not referenced by another plugin, its store entry and its lock
// entry.
func (o *Orchestrator) Uninstall(name string) error {
	entry := o.state.Entry(name)
	if entry == nil {
		return apmerrors.NewPluginError(name, "uninstall", apmerrors.ErrNotInstalled)
	}

	for _, rel := range entry.Files {
		abs := filepath.Join(o.paths.ProjectRoot, filepath.FromSlash(rel))
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return apmerrors.NewPluginError(name, "uninstall", err)
		}
		o.pruneEmptyParents(filepath.Dir(abs))
	}
	for _, rel := range entry.Dirs {
		abs := filepath.Join(o.paths.ProjectRoot, filepath.FromSlash(rel))
		if err := os.Remove(abs); err == nil {
			o.pruneEmptyParents(filepath.Dir(abs))
		}
	}

	if err := o.removeAuxServers(o.state.RevocableServers(name)); err != nil {
		return apmerrors.NewPluginError(name, "uninstall", err)
	}

	o.state.RemovePlugin(name)
	o.lock.RemoveEntry(name)

	if err := o.lock.Save(); err != nil {
		return apmerrors.NewPluginError(name, "uninstall", err)
	}
	if err := o.state.Save(); err != nil {
		return apmerrors.NewPluginError(name, "uninstall", err)
	}
	return nil
}

// removeAuxServers drops server entries from the auxiliary config file
func (o *Orchestrator) removeAuxServers(names []string) error {
	if len(names) == 0 {
		return nil
	}
	path := o.platform.AuxConfigPath(o.paths.ProjectRoot)
	if path == "" {
		return nil
	}

	doc, err := loadAuxConfig(path)
	if err != nil {
		return err
	}
	servers := auxServers(doc)
	for _, name := range names {
		delete(servers, name)
	}
	doc[serversKey] = servers
	return writeAuxConfig(path, doc)
}

// Installed lists plugin names present in the manifest store together with
// their locked versions when available.
func (o *Orchestrator) Installed() map[string]string {
	out := make(map[string]string, len(o.state.Plugins))
	for name := range o.state.Plugins {
		out[name] = o.lock.LockedVersion(name)
	}
	return out
}
