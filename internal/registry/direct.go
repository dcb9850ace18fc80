package registry

import (
	"context"
	"strings"

	"github.com/agentpm/agentpm/internal/errors"
)

// DirectClient resolves a locator naming exactly one package, bypassing any
// registry lookup. Used for plugins with an explicit source.
type DirectClient struct {
	Locator string
}

// NewDirectClient creates a client for a normalized direct locator
func NewDirectClient(source string) *DirectClient {
	return &DirectClient{Locator: NormalizeLocator(source)}
}

// ResolvePackage builds the single package reference this locator names.
// The version is taken from the request when it is exact; otherwise it is
// filled in from the package descriptor after fetch.
func (c *DirectClient) ResolvePackage(ctx context.Context, name, versionOrRange string) (*ResolvedPackage, error) {
	if c.Locator == "file:" {
		return nil, errors.NewRegistryError(c.Locator, "resolve", errors.ErrNoLocator)
	}

	resolved := &ResolvedPackage{
		Name:    name,
		Locator: c.Locator,
	}
	if IsExactVersion(versionOrRange) {
		resolved.Version = versionOrRange
	}

	if strings.HasPrefix(c.Locator, "file:") {
		resolved.LocalPath = LocatorPath(c.Locator)
	}
	return resolved, nil
}

// FetchPackage materializes the package under scratchDir
func (c *DirectClient) FetchPackage(ctx context.Context, resolved *ResolvedPackage, scratchDir string) (string, error) {
	return Fetch(ctx, resolved, scratchDir)
}
