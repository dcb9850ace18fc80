// Package registry turns plugin version specs into packages on disk. It
// provides the registry client abstraction consumed by the resolver plus
// direct-locator handling for filesystem, archive, http and git sources.
package registry

import "context"

// ResolvedPackage is the immutable output of resolution
type ResolvedPackage struct {
	Name    string
	Version string

	// Locator is the URL or path the bytes come from
	Locator string

	// Integrity is the content digest, when known at resolution time
	Integrity string

	// LocalPath is set when the package is already on disk
	// (a directory or an archive); otherwise fetch via Locator.
	LocalPath string
}

// Client resolves names against one registry and fetches packages
type Client interface {
	// ResolvePackage turns a name and version-or-range into a concrete
	// package reference. Returns ErrPluginNotFound / ErrVersionNotFound
	// wrapped in a RegistryError when nothing matches.
	ResolvePackage(ctx context.Context, name, versionOrRange string) (*ResolvedPackage, error)

	// FetchPackage materializes the resolved package under scratchDir and
	// returns the package source directory.
	FetchPackage(ctx context.Context, resolved *ResolvedPackage, scratchDir string) (string, error)
}
