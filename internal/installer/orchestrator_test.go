package installer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentpm/agentpm/internal/adapter"
	"github.com/agentpm/agentpm/internal/config"
	apmerrors "github.com/agentpm/agentpm/internal/errors"
	"github.com/agentpm/agentpm/internal/manifest"
	"github.com/agentpm/agentpm/internal/store"
)

func newTestOrchestrator(t *testing.T, root string, opts Options) *Orchestrator {
	t.Helper()
	t.Setenv("APM_DIR", "")

	paths, err := config.ResolvePaths(root)
	if err != nil {
		t.Fatal(err)
	}
	o, err := New(paths, &config.ProjectConfig{}, adapter.NewClaudeAdapter(), opts)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

// writeSource lays out a plugin package directory: the descriptor plus any
// context or supporting files, keyed by slash-relative path.
func writeSource(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func installOpts() Options {
	return Options{UseLock: true, UpdateLock: true}
}

func TestInstall_FromDirectSource(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": `name: demo
version: 1.0.0
components:
  skills:
    - name: review
      context: skills/review.md
      files:
        - skills/helper.py
  commands:
    - name: go
      context: commands/go.md
`,
		"skills/review.md": "Review for {{ plugin.name }}@{{ plugin.version }}",
		"skills/helper.py": "print('hi')",
		"commands/go.md":   "run the checks",
	})

	o := newTestOrchestrator(t, root, installOpts())
	summary, err := o.Install(context.Background(), []Request{
		{Name: "demo", Spec: PluginSpec{Source: src}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded() != 1 || summary.Failed() != 0 {
		t.Fatalf("summary = %+v", summary.Results)
	}
	res := summary.Results[0]
	if res.Version != "1.0.0" {
		t.Errorf("version = %s, want 1.0.0 from the descriptor", res.Version)
	}

	skill := readBack(t, root, ".claude/skills/review/SKILL.md")
	if skill != "Review for demo@1.0.0" {
		t.Errorf("rendered skill = %q", skill)
	}
	if got := readBack(t, root, ".claude/skills/review/helper.py"); got != "print('hi')" {
		t.Errorf("supporting file = %q", got)
	}
	if got := readBack(t, root, ".claude/commands/go.md"); got != "run the checks" {
		t.Errorf("command = %q", got)
	}

	lock, err := store.LoadLockStore(o.paths.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := lock.Entry("demo")
	if !ok {
		t.Fatal("no lock entry after install")
	}
	if entry.Version != "1.0.0" || entry.Integrity == "" {
		t.Errorf("lock entry = %+v", entry)
	}

	state, err := store.LoadManifestStore(o.paths.StatePath())
	if err != nil {
		t.Fatal(err)
	}
	if !state.IsManaged(".claude/commands/go.md") {
		t.Error("installed file not persisted as managed")
	}
}

func TestInstall_ReinstallIsIdempotent(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": "name: demo\nversion: 1.0.0\ncomponents:\n  commands:\n    - name: go\n      context: commands/go.md\n",
		"commands/go.md": "run",
	})

	req := []Request{{Name: "demo", Spec: PluginSpec{Source: src}}}

	for i := 0; i < 2; i++ {
		o := newTestOrchestrator(t, root, installOpts())
		summary, err := o.Install(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if summary.Failed() != 0 {
			t.Fatalf("run %d: %+v", i, summary.Results)
		}
	}

	if got := readBack(t, root, ".claude/commands/go.md"); got != "run" {
		t.Errorf("content after reinstall = %q", got)
	}
}

func TestInstall_VersionChangeRemovesStaleFiles(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": `name: demo
version: 1.0.0
components:
  skills:
    - name: review
      context: skills/review.md
    - name: extra
      context: skills/extra.md
`,
		"skills/review.md": "review",
		"skills/extra.md":  "extra",
	})

	o := newTestOrchestrator(t, root, installOpts())
	if _, err := o.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, ".claude", "skills", "extra", "SKILL.md")); err != nil {
		t.Fatalf("v1 extra skill missing: %v", err)
	}

	// v2 drops the extra skill
	writeSource(t, src, map[string]string{
		"plugin.yaml": `name: demo
version: 2.0.0
components:
  skills:
    - name: review
      context: skills/review.md
`,
	})

	o2 := newTestOrchestrator(t, root, installOpts())
	summary, err := o2.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed() != 0 {
		t.Fatalf("v2 install failed: %+v", summary.Results)
	}

	if _, err := os.Stat(filepath.Join(root, ".claude", "skills", "extra")); !os.IsNotExist(err) {
		t.Error("stale skill directory survived the upgrade")
	}
	if _, err := os.Stat(filepath.Join(root, ".claude", "skills", "review", "SKILL.md")); err != nil {
		t.Errorf("surviving skill was removed: %v", err)
	}

	lock, err := store.LoadLockStore(o2.paths.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	if v := lock.LockedVersion("demo"); v != "2.0.0" {
		t.Errorf("locked version = %s, want 2.0.0", v)
	}
}

func TestInstall_ConflictReportedWithoutChanges(t *testing.T) {
	root := t.TempDir()
	writeExisting(t, root, ".claude/commands/go.md", "user-owned")

	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": "name: demo\nversion: 1.0.0\ncomponents:\n  commands:\n    - name: go\n      context: commands/go.md\n",
		"commands/go.md": "plugin content",
	})

	o := newTestOrchestrator(t, root, installOpts())
	summary, err := o.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded() != 0 {
		t.Fatalf("conflicting install reported success: %+v", summary.Results)
	}
	if msg := summary.Results[0].Message; !strings.Contains(msg, "would be overwritten") {
		t.Errorf("message = %q", msg)
	}
	if got := readBack(t, root, ".claude/commands/go.md"); got != "user-owned" {
		t.Errorf("user file changed: %q", got)
	}

	lock, err := store.LoadLockStore(o.paths.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	if lock.IsLocked("demo") {
		t.Error("failed install produced a lock entry")
	}
}

func TestInstall_ForceOverwritesConflicts(t *testing.T) {
	root := t.TempDir()
	writeExisting(t, root, ".claude/commands/go.md", "user-owned")

	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": "name: demo\nversion: 1.0.0\ncomponents:\n  commands:\n    - name: go\n      context: commands/go.md\n",
		"commands/go.md": "plugin content",
	})

	opts := installOpts()
	opts.Force = true
	o := newTestOrchestrator(t, root, opts)
	summary, err := o.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded() != 1 {
		t.Fatalf("forced install failed: %+v", summary.Results)
	}
	if got := readBack(t, root, ".claude/commands/go.md"); got != "plugin content" {
		t.Errorf("content = %q, want the plugin's", got)
	}
}

func TestInstall_RenderFailureRollsBack(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": "name: demo\nversion: 1.0.0\ncomponents:\n  commands:\n    - name: good\n      context: commands/good.md\n",
		"commands/good.md": "one",
	})

	o := newTestOrchestrator(t, root, installOpts())
	if _, err := o.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}}); err != nil {
		t.Fatal(err)
	}

	// v2 rewrites the good command and adds one whose context references an
	// undefined variable, failing mid-batch after good.md was overwritten
	writeSource(t, src, map[string]string{
		"plugin.yaml": `name: demo
version: 2.0.0
components:
  commands:
    - name: good
      context: commands/good.md
    - name: bad
      context: commands/bad.md
`,
		"commands/good.md": "two",
		"commands/bad.md":  "{{ missing.var }}",
	})

	o2 := newTestOrchestrator(t, root, installOpts())
	summary, err := o2.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded() != 0 {
		t.Fatalf("broken install reported success: %+v", summary.Results)
	}

	if got := readBack(t, root, ".claude/commands/good.md"); got != "one" {
		t.Errorf("after rollback good.md = %q, want the v1 content", got)
	}
	if _, err := os.Stat(filepath.Join(root, ".claude", "commands", "bad.md")); !os.IsNotExist(err) {
		t.Error("partial file from the failed version exists")
	}

	lock, err := store.LoadLockStore(o2.paths.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	if v := lock.LockedVersion("demo"); v != "1.0.0" {
		t.Errorf("locked version = %s, want the surviving 1.0.0", v)
	}

	state, err := store.LoadManifestStore(o2.paths.StatePath())
	if err != nil {
		t.Fatal(err)
	}
	if !state.IsManaged(".claude/commands/good.md") {
		t.Error("previous managed set not restored after rollback")
	}
}

func TestInstall_WritesAuxServerConfig(t *testing.T) {
	root := t.TempDir()
	existing := map[string]any{
		"mcpServers": map[string]any{
			"pre-existing": map[string]any{"command": "keep-me"},
		},
	}
	data, _ := json.MarshalIndent(existing, "", "  ")
	if err := os.WriteFile(filepath.Join(root, ".mcp.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": `name: demo
version: 1.0.0
components:
  commands:
    - name: go
      context: commands/go.md
mcp_servers:
  - name: search
    command: search-server
    args: ["--fast"]
    env:
      SEARCH_TOKEN: "${SEARCH_TOKEN}"
`,
		"commands/go.md": "run",
	})

	o := newTestOrchestrator(t, root, installOpts())
	summary, err := o.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed() != 0 {
		t.Fatalf("install failed: %+v", summary.Results)
	}

	raw, err := os.ReadFile(filepath.Join(root, ".mcp.json"))
	if err != nil {
		t.Fatal(err)
	}
	if raw[len(raw)-1] != '\n' {
		t.Error("aux config missing trailing newline")
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	servers, _ := doc["mcpServers"].(map[string]any)
	if _, ok := servers["pre-existing"]; !ok {
		t.Error("merge dropped the pre-existing server entry")
	}
	srv, ok := servers["search"].(map[string]any)
	if !ok {
		t.Fatalf("search server missing: %v", servers)
	}
	if srv["command"] != "search-server" {
		t.Errorf("server entry = %v", srv)
	}
}

func TestInstall_ReportsUnsetRequiredEnv(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": `name: demo
version: 1.0.0
components:
  commands:
    - name: go
      context: commands/go.md
env:
  - name: APM_TEST_SURELY_UNSET_TOKEN
    required: true
  - name: APM_TEST_OPTIONAL
`,
		"commands/go.md": "run",
	})

	o := newTestOrchestrator(t, root, installOpts())
	summary, err := o.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.EnvWarnings) != 1 {
		t.Fatalf("env warnings = %v, want one", summary.EnvWarnings)
	}
	if !strings.Contains(summary.EnvWarnings[0], "APM_TEST_SURELY_UNSET_TOKEN") {
		t.Errorf("warning = %q", summary.EnvWarnings[0])
	}
}

func TestUninstall(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": `name: demo
version: 1.0.0
components:
  skills:
    - name: review
      context: skills/review.md
mcp_servers:
  - name: search
    command: search-server
`,
		"skills/review.md": "review",
	})

	o := newTestOrchestrator(t, root, installOpts())
	if _, err := o.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}}); err != nil {
		t.Fatal(err)
	}

	o2 := newTestOrchestrator(t, root, installOpts())
	if err := o2.Uninstall("demo"); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(root, ".claude", "skills", "review")); !os.IsNotExist(err) {
		t.Error("skill directory survived uninstall")
	}

	raw, err := os.ReadFile(filepath.Join(root, ".mcp.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if servers, _ := doc["mcpServers"].(map[string]any); len(servers) != 0 {
		t.Errorf("server entries survived uninstall: %v", servers)
	}

	lock, err := store.LoadLockStore(o2.paths.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	if lock.IsLocked("demo") {
		t.Error("lock entry survived uninstall")
	}

	o3 := newTestOrchestrator(t, root, installOpts())
	if err := o3.Uninstall("demo"); err == nil {
		t.Error("second uninstall succeeded, want not-installed error")
	}
}

// brokenHookAdapter fails its post-install hook after files are on disk
type brokenHookAdapter struct {
	*adapter.ClaudeAdapter
}

func (a *brokenHookAdapter) PostInstall(root string, manifests []*manifest.Manifest) error {
	return errors.New("refresh failed")
}

func TestInstall_StatePersistedDespiteHookFailure(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	writeSource(t, src, map[string]string{
		"plugin.yaml": "name: demo\nversion: 1.0.0\ncomponents:\n  commands:\n    - name: go\n      context: commands/go.md\n",
		"commands/go.md": "run",
	})

	t.Setenv("APM_DIR", "")
	paths, err := config.ResolvePaths(root)
	if err != nil {
		t.Fatal(err)
	}
	o, err := New(paths, &config.ProjectConfig{}, &brokenHookAdapter{adapter.NewClaudeAdapter()}, installOpts())
	if err != nil {
		t.Fatal(err)
	}

	summary, err := o.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}})
	if err == nil {
		t.Fatal("hook failure not surfaced")
	}
	if summary.Succeeded() != 1 {
		t.Fatalf("summary = %+v", summary.Results)
	}

	// the written file stays tracked even though the run errored
	state, err := store.LoadManifestStore(paths.StatePath())
	if err != nil {
		t.Fatal(err)
	}
	if !state.IsManaged(".claude/commands/go.md") {
		t.Fatal("managed state not persisted after hook failure")
	}
	lock, err := store.LoadLockStore(paths.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	if !lock.IsLocked("demo") {
		t.Error("lock not persisted after hook failure")
	}

	// a healthy follow-up run must not conflict with the tracked file
	o2 := newTestOrchestrator(t, root, installOpts())
	summary2, err := o2.Install(context.Background(), []Request{{Name: "demo", Spec: PluginSpec{Source: src}}})
	if err != nil {
		t.Fatal(err)
	}
	if summary2.Failed() != 0 {
		t.Fatalf("follow-up run failed: %+v", summary2.Results)
	}
}

func TestInstall_LockedReinstallDetectsTampering(t *testing.T) {
	regRoot := t.TempDir()
	seedRegistry(t, regRoot, "reviewer", "1.2.0")
	root := t.TempDir()

	t.Setenv("APM_DIR", "")
	paths, err := config.ResolvePaths(root)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.ProjectConfig{
		DefaultRegistry: "main",
		Registries:      map[string]string{"main": regRoot},
	}

	o, err := New(paths, cfg, adapter.NewClaudeAdapter(), installOpts())
	if err != nil {
		t.Fatal(err)
	}
	summary, err := o.Install(context.Background(), []Request{
		{Name: "reviewer", Spec: PluginSpec{Version: "1.2.0"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed() != 0 {
		t.Fatalf("first install failed: %+v", summary.Results)
	}

	// tamper with the registry content behind the locked version
	descriptor := filepath.Join(regRoot, "reviewer", "1.2.0", "plugin.yaml")
	if err := os.WriteFile(descriptor, []byte("name: reviewer\nversion: 1.2.0\ndescription: tampered\n"), 0644); err != nil {
		t.Fatal(err)
	}

	o2, err := New(paths, cfg, adapter.NewClaudeAdapter(), installOpts())
	if err != nil {
		t.Fatal(err)
	}
	summary2, err := o2.Install(context.Background(), []Request{
		{Name: "reviewer", Spec: PluginSpec{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary2.Succeeded() != 0 {
		t.Fatalf("tampered re-install succeeded: %+v", summary2.Results)
	}
	if msg := summary2.Results[0].Message; !strings.Contains(msg, apmerrors.ErrIntegrityMismatch.Error()) {
		t.Errorf("message = %q, want an integrity mismatch", msg)
	}
}

func TestInstall_RegistryLockPinning(t *testing.T) {
	regRoot := t.TempDir()
	seedRegistry(t, regRoot, "reviewer", "1.2.0", "1.3.0")
	root := t.TempDir()

	t.Setenv("APM_DIR", "")
	paths, err := config.ResolvePaths(root)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.ProjectConfig{
		DefaultRegistry: "main",
		Registries:      map[string]string{"main": regRoot},
	}

	install := func(version string) *InstallSummary {
		t.Helper()
		o, err := New(paths, cfg, adapter.NewClaudeAdapter(), installOpts())
		if err != nil {
			t.Fatal(err)
		}
		summary, err := o.Install(context.Background(), []Request{
			{Name: "reviewer", Spec: PluginSpec{Version: version}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if summary.Failed() != 0 {
			t.Fatalf("install %q failed: %+v", version, summary.Results)
		}
		return summary
	}

	// first install pins the explicit version
	install("1.2.0")
	// an unversioned reinstall stays on the pin even though 1.3.0 exists
	if got := install("").Results[0].Version; got != "1.2.0" {
		t.Errorf("repinned version = %s, want 1.2.0", got)
	}
	// an explicit different version overrides the pin
	if got := install("1.3.0").Results[0].Version; got != "1.3.0" {
		t.Errorf("override version = %s, want 1.3.0", got)
	}

	lock, err := store.LoadLockStore(paths.LockPath())
	if err != nil {
		t.Fatal(err)
	}
	if v := lock.LockedVersion("reviewer"); v != "1.3.0" {
		t.Errorf("final locked version = %s", v)
	}
}
