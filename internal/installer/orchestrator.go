package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentpm/agentpm/internal/adapter"
	"github.com/agentpm/agentpm/internal/config"
	apmerrors "github.com/agentpm/agentpm/internal/errors"
	"github.com/agentpm/agentpm/internal/manifest"
	"github.com/agentpm/agentpm/internal/registry"
	"github.com/agentpm/agentpm/internal/render"
	"github.com/agentpm/agentpm/internal/store"
)

// Options controls one install run
type Options struct {
	// UseLock consults the lock store during resolution
	UseLock bool

	// UpdateLock persists lock entries for successful installs
	UpdateLock bool

	// Force skips conflict detection and overwrites unmanaged files
	Force bool
}

// Orchestrator drives install batches: it resolves every requested plugin,
// fetches and parses packages, runs each plugin through its own
// transactional unit, and updates the manifest and lock stores.
//
// Plugins are processed sequentially; conflict detection and the shared
// store mutation are not safe under concurrent writers.
type Orchestrator struct {
	paths    *config.Paths
	cfg      *config.ProjectConfig
	platform adapter.Adapter
	opts     Options

	state    *store.ManifestStore
	lock     *store.LockStore
	resolver *Resolver

	scratchDirs []string
	auxIncoming map[string]any
}

// New loads the manifest and lock stores and builds an orchestrator
func New(paths *config.Paths, cfg *config.ProjectConfig, platform adapter.Adapter, opts Options) (*Orchestrator, error) {
	if err := paths.EnsureStateDirs(); err != nil {
		return nil, err
	}

	state, err := store.LoadManifestStore(paths.StatePath())
	if err != nil {
		return nil, err
	}
	lock, err := store.LoadLockStore(paths.LockPath())
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		paths:    paths,
		cfg:      cfg,
		platform: platform,
		opts:     opts,
		state:    state,
		lock:     lock,
		resolver: NewResolver(cfg, lock),
	}, nil
}

type batchItem struct {
	req Request
	pkg *registry.ResolvedPackage

	// filled by the best-effort pre-pass when it succeeds
	srcDir   string
	manifest *manifest.Manifest
}

// Install processes a batch of plugin requests. A failure for one plugin
// never aborts its siblings; the summary carries one result per attempted
// plugin. Stores are persisted once at the end, never speculatively.
func (o *Orchestrator) Install(ctx context.Context, requests []Request) (*InstallSummary, error) {
	summary := &InstallSummary{}
	o.auxIncoming = make(map[string]any)
	defer o.purgeScratch()

	var batch []*batchItem
	for _, req := range requests {
		pkg, err := o.resolver.Resolve(ctx, req.Name, req.Spec, o.opts.UseLock)
		if err != nil {
			summary.Results = append(summary.Results, InstallResult{
				Plugin:  req.Name,
				Message: fmt.Sprintf("resolve: %v", err),
			})
			continue
		}
		if pkg == nil {
			// no locator applies; dropped from the batch
			continue
		}
		batch = append(batch, &batchItem{req: req, pkg: pkg})
	}

	// best-effort pre-pass: parsed manifests give the adapter a preview
	var previews []*manifest.Manifest
	for _, item := range batch {
		if m, srcDir := o.previewManifest(ctx, item.pkg); m != nil {
			item.manifest = m
			item.srcDir = srcDir
			previews = append(previews, m)
		}
	}
	if err := o.platform.PreInstall(o.paths.ProjectRoot, previews); err != nil {
		return summary, fmt.Errorf("pre-install hook: %w", err)
	}

	var installed []*manifest.Manifest
	for _, item := range batch {
		result, m := o.installOne(ctx, item)
		summary.Results = append(summary.Results, result)
		if result.Success && m != nil {
			installed = append(installed, m)
		}
	}

	// stores are persisted even when the aux-config write or post-install
	// hook fails; files already on disk must stay tracked
	var hookErr error
	if err := o.persistAuxConfig(); err != nil {
		hookErr = fmt.Errorf("auxiliary config: %w", err)
	}
	if err := o.platform.PostInstall(o.paths.ProjectRoot, installed); err != nil && hookErr == nil {
		hookErr = fmt.Errorf("post-install hook: %w", err)
	}

	if o.opts.UpdateLock {
		if err := o.lock.Save(); err != nil {
			return summary, fmt.Errorf("save lock: %w", err)
		}
	}
	if err := o.state.Save(); err != nil {
		return summary, fmt.Errorf("save managed state: %w", err)
	}

	for _, m := range installed {
		for _, name := range m.RequiredEnvUnset() {
			summary.EnvWarnings = append(summary.EnvWarnings,
				fmt.Sprintf("plugin %s: required environment variable %s is not set", m.Name, name))
		}
	}

	return summary, hookErr
}

// previewManifest fetches and parses a package best-effort; absence is a
// valid, expected outcome.
func (o *Orchestrator) previewManifest(ctx context.Context, pkg *registry.ResolvedPackage) (*manifest.Manifest, string) {
	scratch, err := o.newScratch(pkg.Name)
	if err != nil {
		return nil, ""
	}
	srcDir, err := registry.Fetch(ctx, pkg, scratch)
	if err != nil {
		return nil, ""
	}
	m, err := manifest.Load(srcDir)
	if err != nil {
		return nil, ""
	}
	return m, srcDir
}

// installOne is the transactional unit for a single plugin
func (o *Orchestrator) installOne(ctx context.Context, item *batchItem) (InstallResult, *manifest.Manifest) {
	name := item.req.Name
	pkg := item.pkg
	fail := func(err error) (InstallResult, *manifest.Manifest) {
		return InstallResult{Plugin: name, Version: pkg.Version, Message: err.Error()}, nil
	}

	srcDir := item.srcDir
	if srcDir == "" {
		scratch, err := o.newScratch(name)
		if err != nil {
			return fail(err)
		}
		srcDir, err = registry.Fetch(ctx, pkg, scratch)
		if err != nil {
			return fail(err)
		}
	}

	m := item.manifest
	if m == nil {
		var err error
		m, err = manifest.Load(srcDir)
		if err != nil {
			return fail(err)
		}
	}
	if pkg.Version == "" {
		pkg.Version = m.Version
	}

	// pkg.Integrity is the digest of the fetched bytes; a locked re-install
	// of the same version must match the recorded digest. Direct sources
	// are exempt, they never resolve through the lock.
	if o.opts.UseLock && item.req.Spec.Source == "" {
		if entry, ok := o.lock.Entry(name); ok &&
			entry.Version == pkg.Version && entry.Integrity != "" &&
			pkg.Integrity != "" && entry.Integrity != pkg.Integrity {
			return fail(apmerrors.NewPluginError(name, "fetch", apmerrors.ErrIntegrityMismatch))
		}
	}

	warnings := o.platform.ValidateCompatibility(m)
	vars := o.platform.TemplateVariables(o.paths.ProjectRoot, m)

	prev := copyEntry(o.state.Entry(name))
	prevFiles := make(map[string]bool, len(prev.Files))
	for _, f := range prev.Files {
		prevFiles[f] = true
	}
	o.state.RemovePlugin(name)

	tx := NewTransaction(name, o.paths.ProjectRoot, filepath.Join(o.paths.BackupsDir(), name), o.state, o.opts.Force)
	localServers := make(map[string]any)

	err := o.applyComponents(tx, m, vars, srcDir, prevFiles, localServers)
	if err == nil {
		err = o.cleanupStale(name, prev)
	}

	if err != nil {
		if conflict, ok := err.(*ConflictError); ok {
			// nothing was written for the conflicting plan; applied plans
			// stay, so fold the previous entry back in to keep every file
			// on disk accounted for
			o.restoreEntryUnion(name, prev)
			tx.Discard()
			return InstallResult{Plugin: name, Version: pkg.Version, Message: conflict.Error(), Warnings: warnings}, nil
		}
		tx.Rollback()
		o.state.RemovePlugin(name)
		o.setEntry(name, prev)
		return InstallResult{Plugin: name, Version: pkg.Version, Message: err.Error(), Warnings: warnings}, nil
	}

	for srvName := range localServers {
		o.state.AddServer(name, srvName)
	}
	for _, pattern := range m.Permissions {
		o.state.AddPermission(name, pattern)
	}
	o.auxIncoming = o.platform.MergeServerConfig(o.auxIncoming, localServers)

	tx.Discard()
	if o.opts.UpdateLock {
		o.lock.SetEntry(name, store.LockEntry{
			Version:   pkg.Version,
			Locator:   pkg.Locator,
			Integrity: pkg.Integrity,
		})
	}

	return InstallResult{
		Plugin:   name,
		Version:  pkg.Version,
		Success:  true,
		Message:  fmt.Sprintf("installed %s@%s", name, pkg.Version),
		Warnings: warnings,
	}, m
}

// applyComponents renders and executes a plan for every declared component
func (o *Orchestrator) applyComponents(tx *Transaction, m *manifest.Manifest, vars map[string]any, srcDir string, prevFiles map[string]bool, servers map[string]any) error {
	kinds := []struct {
		kind adapter.ComponentKind
		list []manifest.Component
	}{
		{adapter.KindSkill, m.Components.Skills},
		{adapter.KindCommand, m.Components.Commands},
		{adapter.KindAgent, m.Components.Agents},
		{adapter.KindRule, m.Components.Rules},
		{adapter.KindInstruction, m.Components.Instructions},
		{adapter.KindPrompt, m.Components.Prompts},
	}

	for _, group := range kinds {
		for _, c := range group.list {
			if err := o.applyComponent(tx, group.kind, c, m, vars, srcDir, prevFiles); err != nil {
				return err
			}
		}
	}

	if m.Components.AgentFile != nil {
		if err := o.applyComponent(tx, adapter.KindAgentFile, *m.Components.AgentFile, m, vars, srcDir, prevFiles); err != nil {
			return err
		}
	}

	for _, srv := range m.MCPServers {
		entry, err := o.platform.GenerateServerConfig(srv, m, o.paths.ProjectRoot, srcDir)
		if err != nil {
			return err
		}
		for k, v := range entry {
			servers[k] = v
		}
	}

	return nil
}

func (o *Orchestrator) applyComponent(tx *Transaction, kind adapter.ComponentKind, c manifest.Component, m *manifest.Manifest, vars map[string]any, srcDir string, prevFiles map[string]bool) error {
	rendered, err := render.ResolveContext(c.Context, srcDir, vars)
	if err != nil {
		return err
	}
	plan, err := o.platform.PlanComponent(kind, c, m, rendered, o.paths.ProjectRoot, srcDir)
	if err != nil {
		return err
	}
	return tx.Execute(plan, prevFiles)
}

// cleanupStale removes files present in the previous version's managed set
// but absent from the new one, pruning now-empty parent directories up to
// (but not including) the project root.
func (o *Orchestrator) cleanupStale(name string, prev store.ManagedEntry) error {
	current := make(map[string]bool)
	for _, f := range o.state.ManagedFiles(name) {
		current[f] = true
	}
	currentDirs := make(map[string]bool)
	for _, d := range o.state.ManagedDirs(name) {
		currentDirs[d] = true
	}

	for _, rel := range prev.Files {
		if current[rel] {
			continue
		}
		abs := filepath.Join(o.paths.ProjectRoot, filepath.FromSlash(rel))
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return err
		}
		o.pruneEmptyParents(filepath.Dir(abs))
	}

	for _, rel := range prev.Dirs {
		if currentDirs[rel] {
			continue
		}
		abs := filepath.Join(o.paths.ProjectRoot, filepath.FromSlash(rel))
		// only removes empty directories
		if err := os.Remove(abs); err == nil {
			o.pruneEmptyParents(filepath.Dir(abs))
		}
	}

	return nil
}

func (o *Orchestrator) pruneEmptyParents(dir string) {
	root := o.paths.ProjectRoot
	for dir != root && len(dir) > len(root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (o *Orchestrator) persistAuxConfig() error {
	if len(o.auxIncoming) == 0 {
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
	doc[serversKey] = o.platform.MergeServerConfig(auxServers(doc), o.auxIncoming)
	return writeAuxConfig(path, doc)
}

func (o *Orchestrator) newScratch(name string) (string, error) {
	if err := os.MkdirAll(o.paths.ScratchDir(), 0755); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(o.paths.ScratchDir(), name+"-*")
	if err != nil {
		return "", err
	}
	o.scratchDirs = append(o.scratchDirs, dir)
	return dir, nil
}

func (o *Orchestrator) purgeScratch() {
	for _, dir := range o.scratchDirs {
		os.RemoveAll(dir)
	}
	o.scratchDirs = nil
}

func (o *Orchestrator) setEntry(name string, entry store.ManagedEntry) {
	if len(entry.Files) == 0 && len(entry.Dirs) == 0 &&
		len(entry.Servers) == 0 && len(entry.Permissions) == 0 {
		return
	}
	for _, f := range entry.Files {
		o.state.AddFile(name, f)
	}
	for _, d := range entry.Dirs {
		o.state.AddDir(name, d)
	}
	for _, s := range entry.Servers {
		o.state.AddServer(name, s)
	}
	for _, p := range entry.Permissions {
		o.state.AddPermission(name, p)
	}
}

// restoreEntryUnion folds the previous entry back into whatever the partial
// install already recorded.
func (o *Orchestrator) restoreEntryUnion(name string, prev store.ManagedEntry) {
	o.setEntry(name, prev)
}

func copyEntry(e *store.ManagedEntry) store.ManagedEntry {
	if e == nil {
		return store.ManagedEntry{}
	}
	return store.ManagedEntry{
		Files:       append([]string(nil), e.Files...),
		Dirs:        append([]string(nil), e.Dirs...),
		Servers:     append([]string(nil), e.Servers...),
		Permissions: append([]string(nil), e.Permissions...),
	}
}
