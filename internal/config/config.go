package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ProjectConfig represents the apm.toml configuration file
type ProjectConfig struct {
	// Default registry used when a plugin names no registry
	DefaultRegistry string `toml:"default_registry,omitempty"`

	// Named registry table: name -> base URL or local path
	Registries map[string]string `toml:"registries,omitempty"`

	// Requested plugins: name -> spec
	Plugins map[string]PluginConfig `toml:"plugins,omitempty"`
}

// PluginConfig is one requested plugin entry in apm.toml
type PluginConfig struct {
	// Version range or exact version (optional)
	Version string `toml:"version,omitempty"`

	// Direct source locator, overrides registry lookup (optional)
	Source string `toml:"source,omitempty"`

	// Named registry or explicit registry URL (optional)
	Registry string `toml:"registry,omitempty"`
}

// DefaultProjectConfig returns default configuration
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Registries: make(map[string]string),
		Plugins:    make(map[string]PluginConfig),
	}
}

// LoadProjectConfig loads apm.toml from the project root
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultProjectConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultProjectConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Registries == nil {
		cfg.Registries = make(map[string]string)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = make(map[string]PluginConfig)
	}

	return cfg, nil
}

// Save writes apm.toml to disk
func (c *ProjectConfig) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RegistryLocator looks up a named registry, falling back to the default
// registry when name is empty. Returns "" when nothing is configured.
func (c *ProjectConfig) RegistryLocator(name string) string {
	if name == "" {
		name = c.DefaultRegistry
	}
	if name == "" {
		return ""
	}
	if loc, ok := c.Registries[name]; ok {
		return loc
	}
	return ""
}
