package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/agentpm/agentpm/internal/errors"
)

// HTTPRegistry resolves packages from an HTTP index registry. Each package
// publishes <base>/<name>/index.json listing its versions and archive URLs.
type HTTPRegistry struct {
	BaseURL string
}

// NewHTTPRegistry creates a client for an index registry base URL
func NewHTTPRegistry(baseURL string) *HTTPRegistry {
	return &HTTPRegistry{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

type indexDocument struct {
	Name     string                  `json:"name"`
	Versions map[string]indexVersion `json:"versions"`
}

type indexVersion struct {
	URL       string `json:"url"`
	Integrity string `json:"integrity,omitempty"`
}

// ResolvePackage fetches the package index and picks the best version
func (r *HTTPRegistry) ResolvePackage(ctx context.Context, name, versionOrRange string) (*ResolvedPackage, error) {
	indexURL := r.BaseURL + "/" + name + "/index.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, errors.NewRegistryError(indexURL, "resolve", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.NewRegistryError(indexURL, "resolve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewRegistryError(indexURL, "resolve",
			fmt.Errorf("%w: %s", errors.ErrPluginNotFound, name))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewRegistryError(indexURL, "resolve", fmt.Errorf("status %d", resp.StatusCode))
	}

	var index indexDocument
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return nil, errors.NewRegistryError(indexURL, "resolve", err)
	}

	available := make([]string, 0, len(index.Versions))
	for v := range index.Versions {
		available = append(available, v)
	}
	version, err := pickVersion(available, versionOrRange)
	if err != nil {
		return nil, errors.NewRegistryError(indexURL, "resolve", err)
	}

	entry := index.Versions[version]
	if entry.URL == "" {
		return nil, errors.NewRegistryError(indexURL, "resolve",
			fmt.Errorf("version %s has no download URL", version))
	}

	return &ResolvedPackage{
		Name:      name,
		Version:   version,
		Locator:   entry.URL,
		Integrity: entry.Integrity,
	}, nil
}

// FetchPackage downloads and extracts the version archive
func (r *HTTPRegistry) FetchPackage(ctx context.Context, resolved *ResolvedPackage, scratchDir string) (string, error) {
	return Fetch(ctx, resolved, scratchDir)
}

// ForLocator dispatches a registry locator to the matching client type
func ForLocator(locator string) (Client, error) {
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return NewHTTPRegistry(locator), nil
	case strings.HasPrefix(locator, "file:"):
		return NewLocalRegistry(LocatorPath(locator)), nil
	case !IsDirectLocator(locator):
		// bare path registry root
		return NewLocalRegistry(locator), nil
	default:
		return nil, errors.NewRegistryError(locator, "registry", errors.ErrUnsupportedScheme)
	}
}
