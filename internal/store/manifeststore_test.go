package store

import (
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func TestManifestStore_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "managed.toml")

	s := NewManifestStore(path)
	s.AddFile("alpha", ".claude/skills/a/SKILL.md")
	s.AddFile("alpha", ".claude/commands/a.md")
	s.AddDir("alpha", ".claude/skills/a")
	s.AddServer("alpha", "api")
	s.AddPermission("alpha", "Bash(git:*)")
	s.AddFile("beta", ".claude/commands/b.md")

	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadManifestStore(path)
	if err != nil {
		t.Fatal(err)
	}

	files := loaded.ManagedFiles("alpha")
	sort.Strings(files)
	want := []string{".claude/commands/a.md", ".claude/skills/a/SKILL.md"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("files = %v, want %v", files, want)
	}
	if dirs := loaded.ManagedDirs("alpha"); len(dirs) != 1 || dirs[0] != ".claude/skills/a" {
		t.Errorf("dirs = %v", dirs)
	}
	if e := loaded.Entry("alpha"); len(e.Servers) != 1 || len(e.Permissions) != 1 {
		t.Errorf("entry = %+v", e)
	}
}

func TestLoadManifestStore_Absent(t *testing.T) {
	s, err := LoadManifestStore(filepath.Join(t.TempDir(), "managed.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Plugins) != 0 {
		t.Errorf("expected empty store, got %d plugins", len(s.Plugins))
	}
}

func TestManifestStore_IsManaged(t *testing.T) {
	s := NewManifestStore("")
	s.AddFile("alpha", ".claude/skills/a/SKILL.md")

	if !s.IsManaged(".claude/skills/a/SKILL.md") {
		t.Error("managed path not reported")
	}
	if s.IsManaged(".claude/skills/other.md") {
		t.Error("unmanaged path reported as managed")
	}
}

func TestManifestStore_AllManagedPaths(t *testing.T) {
	s := NewManifestStore("")
	s.AddFile("alpha", "a.md")
	s.AddFile("beta", "b.md")
	s.AddFile("beta", "a.md") // path recorded by two plugins still appears once

	all := s.AllManagedPaths()
	if len(all) != 2 || !all["a.md"] || !all["b.md"] {
		t.Errorf("all = %v", all)
	}
}

func TestManifestStore_RemovePlugin(t *testing.T) {
	s := NewManifestStore("")
	s.AddFile("alpha", "a.md")
	s.RemovePlugin("alpha")

	if s.Entry("alpha") != nil {
		t.Error("entry survived removal")
	}
	if s.IsManaged("a.md") {
		t.Error("path still managed after removal")
	}
}

func TestManifestStore_AddFileDeduplicates(t *testing.T) {
	s := NewManifestStore("")
	s.AddFile("alpha", "a.md")
	s.AddFile("alpha", "a.md")

	if files := s.ManagedFiles("alpha"); len(files) != 1 {
		t.Errorf("files = %v, want one entry", files)
	}
}

func TestRevocable(t *testing.T) {
	s := NewManifestStore("")
	s.AddPermission("alpha", "Bash(git:*)")
	s.AddPermission("alpha", "Read(docs/**)")
	s.AddPermission("beta", "Bash(git:*)")
	s.AddServer("alpha", "shared-api")
	s.AddServer("alpha", "alpha-only")
	s.AddServer("beta", "shared-api")

	perms := s.RevocablePermissions("alpha")
	if len(perms) != 1 || perms[0] != "Read(docs/**)" {
		t.Errorf("revocable permissions = %v, want [Read(docs/**)]", perms)
	}

	servers := s.RevocableServers("alpha")
	if len(servers) != 1 || servers[0] != "alpha-only" {
		t.Errorf("revocable servers = %v, want [alpha-only]", servers)
	}

	if got := s.RevocablePermissions("gamma"); got != nil {
		t.Errorf("revocable for unknown plugin = %v, want nil", got)
	}
}
