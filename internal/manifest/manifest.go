// Package manifest parses the plugin.yaml package descriptor into typed
// component lists consumed by the install orchestrator.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DescriptorFile is the declarative file at a package root
const DescriptorFile = "plugin.yaml"

// Manifest is the parsed package descriptor
type Manifest struct {
	Name        string      `yaml:"name"`
	Version     string      `yaml:"version"`
	Description string      `yaml:"description,omitempty"`
	Components  Components  `yaml:"components"`
	MCPServers  []MCPServer `yaml:"mcp_servers,omitempty"`
	Permissions []string    `yaml:"permissions,omitempty"`
	Env         []EnvVar    `yaml:"env,omitempty"`
}

// Components groups every declared component by kind
type Components struct {
	Skills       []Component `yaml:"skills,omitempty"`
	Commands     []Component `yaml:"commands,omitempty"`
	Agents       []Component `yaml:"agents,omitempty"`
	Rules        []Component `yaml:"rules,omitempty"`
	Instructions []Component `yaml:"instructions,omitempty"`
	Prompts      []Component `yaml:"prompts,omitempty"`

	// AgentFile is the optional agent-file injection
	AgentFile *Component `yaml:"agent_file,omitempty"`
}

// Component is one declared unit inside a plugin manifest
type Component struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Context     ContextSpec `yaml:"context,omitempty"`

	// Files are supporting files copied verbatim from the package
	Files []string `yaml:"files,omitempty"`
}

// MCPServer declares an auxiliary external server
type MCPServer struct {
	Name      string            `yaml:"name"`
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	Transport string            `yaml:"transport,omitempty"`
	URL       string            `yaml:"url,omitempty"`
}

// EnvVar declares an environment variable the plugin expects
type EnvVar struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
}

// ContextItem is one entry of a context spec: a relative path, optionally
// guarded by a predicate expression evaluated against the template context.
type ContextItem struct {
	Path string
	When string
}

// ContextSpec is either a single relative path or an ordered list of items.
// Single decides missing-file behavior: a missing single file renders an
// inert placeholder, a missing list item is skipped.
type ContextSpec struct {
	Items  []ContextItem
	Single bool
}

// IsZero reports whether no context was declared
func (c ContextSpec) IsZero() bool {
	return len(c.Items) == 0
}

// UnmarshalYAML accepts a scalar path or a sequence of scalar / {path, when}
func (c *ContextSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var path string
		if err := node.Decode(&path); err != nil {
			return err
		}
		c.Items = []ContextItem{{Path: path}}
		c.Single = true
		return nil

	case yaml.SequenceNode:
		for _, entry := range node.Content {
			switch entry.Kind {
			case yaml.ScalarNode:
				var path string
				if err := entry.Decode(&path); err != nil {
					return err
				}
				c.Items = append(c.Items, ContextItem{Path: path})
			case yaml.MappingNode:
				var item struct {
					Path string `yaml:"path"`
					When string `yaml:"when"`
				}
				if err := entry.Decode(&item); err != nil {
					return err
				}
				if item.Path == "" {
					return fmt.Errorf("line %d: context item missing path", entry.Line)
				}
				c.Items = append(c.Items, ContextItem{Path: item.Path, When: item.When})
			default:
				return fmt.Errorf("line %d: context item must be a path or {path, when}", entry.Line)
			}
		}
		return nil

	default:
		return fmt.Errorf("line %d: context must be a path or a list", node.Line)
	}
}

// Load reads and validates the descriptor at a package source directory
func Load(sourceDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(sourceDir, DescriptorFile))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes descriptor bytes
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", DescriptorFile, err)
	}
	if m.Name == "" {
		return nil, errors.New("manifest missing name")
	}
	if m.Version == "" {
		return nil, errors.New("manifest missing version")
	}
	return &m, nil
}

// RequiredEnvUnset returns the names of required env vars that are not set
// in the current environment.
func (m *Manifest) RequiredEnvUnset() []string {
	var unset []string
	for _, v := range m.Env {
		if v.Required && os.Getenv(v.Name) == "" {
			unset = append(unset, v.Name)
		}
	}
	return unset
}
