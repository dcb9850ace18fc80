package config

import (
	"os"
	"path/filepath"
)

// Paths holds all resolved paths for apm operations inside one project
type Paths struct {
	ProjectRoot string // target project directory
	ApmDir      string // <root>/.apm (apm state directory)
}

// ResolvePaths resolves the apm paths for a project root.
// APM_DIR overrides the state directory location.
func ResolvePaths(projectRoot string) (*Paths, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}

	apmDir := os.Getenv("APM_DIR")
	if apmDir == "" {
		apmDir = filepath.Join(root, ".apm")
	}

	return &Paths{
		ProjectRoot: root,
		ApmDir:      apmDir,
	}, nil
}

// ConfigPath returns the path to apm.toml
func (p *Paths) ConfigPath() string {
	return filepath.Join(p.ProjectRoot, "apm.toml")
}

// LockPath returns the path to the lock file
func (p *Paths) LockPath() string {
	return filepath.Join(p.ProjectRoot, "apm.lock")
}

// StatePath returns the path to the managed-file state file
func (p *Paths) StatePath() string {
	return filepath.Join(p.ApmDir, "managed.toml")
}

// CacheDir returns the version-control-ignored cache directory
func (p *Paths) CacheDir() string {
	return filepath.Join(p.ApmDir, "cache")
}

// BackupsDir returns the backup area for one executor run
func (p *Paths) BackupsDir() string {
	return filepath.Join(p.CacheDir(), "backups")
}

// ScratchDir returns the root for fetch/extract scratch directories
func (p *Paths) ScratchDir() string {
	return filepath.Join(p.CacheDir(), "scratch")
}

// IsInitialized checks whether the project has an apm.toml
func (p *Paths) IsInitialized() bool {
	info, err := os.Stat(p.ConfigPath())
	return err == nil && !info.IsDir()
}

// EnsureStateDirs creates the state and cache directories, and drops a
// .gitignore so backups and scratch data stay out of version control.
func (p *Paths) EnsureStateDirs() error {
	if err := os.MkdirAll(p.CacheDir(), 0755); err != nil {
		return err
	}
	ignorePath := filepath.Join(p.ApmDir, ".gitignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		return os.WriteFile(ignorePath, []byte("cache/\n"), 0644)
	}
	return nil
}
