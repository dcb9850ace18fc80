package installer

import (
	"context"
	"fmt"

	"github.com/agentpm/agentpm/internal/config"
	apmerrors "github.com/agentpm/agentpm/internal/errors"
	"github.com/agentpm/agentpm/internal/registry"
	"github.com/agentpm/agentpm/internal/store"
)

// Resolver turns (name, spec) pairs into concrete fetchable package
// references, consulting the lock store and the project registry table.
type Resolver struct {
	cfg  *config.ProjectConfig
	lock *store.LockStore
}

// NewResolver creates a resolver over project config and lock state
func NewResolver(cfg *config.ProjectConfig, lock *store.LockStore) *Resolver {
	return &Resolver{cfg: cfg, lock: lock}
}

// Resolve produces a package reference, or (nil, nil) when no locator
// applies to the spec (the caller drops the plugin from the batch).
//
// When useLock is set and the spec has no direct source, a lock entry
// re-pins the effective version, unless the spec names a different
// explicit version, which always wins. An explicit version equal to the
// locked one still goes through the lock; this keeps repeat installs on
// the pinned version while letting an explicit upgrade or downgrade
// bypass it. The locked integrity digest is not copied onto the result:
// fetch digests the actual bytes and the orchestrator compares those
// against the lock.
func (r *Resolver) Resolve(ctx context.Context, name string, spec PluginSpec, useLock bool) (*registry.ResolvedPackage, error) {
	effective := spec.Version

	if useLock && spec.Source == "" && r.lock != nil {
		if entry, ok := r.lock.Entry(name); ok {
			if spec.Version == "" || spec.Version == entry.Version {
				effective = entry.Version
			}
		}
	}

	if spec.Source != "" {
		client := registry.NewDirectClient(spec.Source)
		return client.ResolvePackage(ctx, name, effective)
	}

	locator := spec.Registry
	if !registry.IsDirectLocator(locator) {
		locator = r.cfg.RegistryLocator(spec.Registry)
		if locator == "" && spec.Registry != "" {
			return nil, apmerrors.NewPluginError(name, "resolve",
				fmt.Errorf("%w: %s", apmerrors.ErrRegistryNotFound, spec.Registry))
		}
	}
	if locator == "" {
		return nil, nil
	}

	client, err := registry.ForLocator(locator)
	if err != nil {
		return nil, err
	}

	return client.ResolvePackage(ctx, name, effective)
}
