package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apmerrors "github.com/agentpm/agentpm/internal/errors"
)

func seedLocalRegistry(t *testing.T, root, name string, versions ...string) {
	t.Helper()
	for _, v := range versions {
		dir := filepath.Join(root, name, v)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		descriptor := "name: " + name + "\nversion: " + v + "\n"
		if err := os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(descriptor), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLocalRegistry_Resolve(t *testing.T) {
	root := t.TempDir()
	seedLocalRegistry(t, root, "reviewer", "1.0.0", "1.2.0", "2.0.0")

	r := NewLocalRegistry(root)
	ctx := context.Background()

	t.Run("latest", func(t *testing.T) {
		pkg, err := r.ResolvePackage(ctx, "reviewer", "")
		if err != nil {
			t.Fatal(err)
		}
		if pkg.Version != "2.0.0" {
			t.Errorf("version = %s, want 2.0.0", pkg.Version)
		}
		if pkg.LocalPath == "" {
			t.Error("expected LocalPath for filesystem registry")
		}
	})

	t.Run("range", func(t *testing.T) {
		pkg, err := r.ResolvePackage(ctx, "reviewer", "^1.0.0")
		if err != nil {
			t.Fatal(err)
		}
		if pkg.Version != "1.2.0" {
			t.Errorf("version = %s, want 1.2.0", pkg.Version)
		}
	})

	t.Run("unknown plugin", func(t *testing.T) {
		_, err := r.ResolvePackage(ctx, "ghost", "")
		if !errors.Is(err, apmerrors.ErrPluginNotFound) {
			t.Errorf("error = %v, want ErrPluginNotFound", err)
		}
	})

	t.Run("unsatisfied version", func(t *testing.T) {
		_, err := r.ResolvePackage(ctx, "reviewer", "3.0.0")
		if !errors.Is(err, apmerrors.ErrVersionNotFound) {
			t.Errorf("error = %v, want ErrVersionNotFound", err)
		}
	})
}

func TestLocalRegistry_Fetch(t *testing.T) {
	root := t.TempDir()
	seedLocalRegistry(t, root, "reviewer", "1.0.0")

	r := NewLocalRegistry(root)
	ctx := context.Background()

	pkg, err := r.ResolvePackage(ctx, "reviewer", "1.0.0")
	if err != nil {
		t.Fatal(err)
	}

	srcDir, err := r.FetchPackage(ctx, pkg, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(srcDir, "plugin.yaml")); err != nil {
		t.Errorf("descriptor missing in fetched dir: %v", err)
	}
	if pkg.Integrity == "" {
		t.Error("integrity not filled from fetched tree")
	}
}

func TestFetch_ArchiveLocalPath(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "pkg.tar.gz")
	writeTarGz(t, archive, []tarEntry{
		{name: "pkg/plugin.yaml", content: "name: pkg\nversion: 1.0.0\n"},
	})

	pkg := &ResolvedPackage{Name: "pkg", Locator: "file:" + archive, LocalPath: archive}
	srcDir, err := Fetch(context.Background(), pkg, filepath.Join(tmp, "scratch"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(srcDir, "plugin.yaml")); err != nil {
		t.Errorf("descriptor missing after archive fetch: %v", err)
	}
}

func TestFetch_DeclaredIntegrityMismatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte("name: p\nversion: 1.0.0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pkg := &ResolvedPackage{Name: "p", Locator: "file:" + dir, LocalPath: dir, Integrity: "sha256-bogus"}
	if _, err := Fetch(context.Background(), pkg, t.TempDir()); !errors.Is(err, apmerrors.ErrIntegrityMismatch) {
		t.Errorf("error = %v, want ErrIntegrityMismatch", err)
	}
}

func TestFetch_FillsDigestFromFetchedBytes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte("name: p\nversion: 1.0.0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pkg := &ResolvedPackage{Name: "p", Locator: "file:" + dir, LocalPath: dir}
	if _, err := Fetch(context.Background(), pkg, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	want, err := TreeDigest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Integrity != want {
		t.Errorf("integrity = %s, want the digest of the fetched tree %s", pkg.Integrity, want)
	}
}

func TestFetch_ObjectStorageNotConfigured(t *testing.T) {
	pkg := &ResolvedPackage{Name: "pkg", Locator: "s3://bucket/pkg.tar.gz"}
	_, err := Fetch(context.Background(), pkg, t.TempDir())
	if !errors.Is(err, apmerrors.ErrUnsupportedScheme) {
		t.Errorf("error = %v, want ErrUnsupportedScheme", err)
	}
}

func TestNormalizeLocator(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/abs/path", "file:/abs/path"},
		{"./rel/path", "file:./rel/path"},
		{"file:/already", "file:/already"},
		{"https://example.com/p.tar.gz", "https://example.com/p.tar.gz"},
		{"git+https://example.com/r.git", "git+https://example.com/r.git"},
		{"s3://bucket/key", "s3://bucket/key"},
		{"az://container/key", "az://container/key"},
	}

	for _, tt := range tests {
		if got := NormalizeLocator(tt.in); got != tt.want {
			t.Errorf("NormalizeLocator(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
