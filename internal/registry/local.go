package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentpm/agentpm/internal/errors"
)

// LocalRegistry resolves packages from a filesystem registry laid out as
// <root>/<name>/<version>/ with a descriptor in each version directory.
type LocalRegistry struct {
	Root string
}

// NewLocalRegistry creates a client over a registry root directory
func NewLocalRegistry(root string) *LocalRegistry {
	return &LocalRegistry{Root: root}
}

// ResolvePackage picks the best version directory for the request
func (r *LocalRegistry) ResolvePackage(ctx context.Context, name, versionOrRange string) (*ResolvedPackage, error) {
	pkgDir := filepath.Join(r.Root, name)
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewRegistryError(r.Root, "resolve",
				fmt.Errorf("%w: %s", errors.ErrPluginNotFound, name))
		}
		return nil, errors.NewRegistryError(r.Root, "resolve", err)
	}

	var available []string
	for _, e := range entries {
		if e.IsDir() {
			available = append(available, e.Name())
		}
	}

	version, err := pickVersion(available, versionOrRange)
	if err != nil {
		return nil, errors.NewRegistryError(r.Root, "resolve", err)
	}

	dir := filepath.Join(pkgDir, version)
	return &ResolvedPackage{
		Name:      name,
		Version:   version,
		Locator:   "file:" + dir,
		LocalPath: dir,
	}, nil
}

// FetchPackage returns the version directory as-is
func (r *LocalRegistry) FetchPackage(ctx context.Context, resolved *ResolvedPackage, scratchDir string) (string, error) {
	return Fetch(ctx, resolved, scratchDir)
}
