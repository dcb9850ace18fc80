// Package adapter defines the platform capability interface that maps
// generic plugin components onto a concrete host-platform file layout. The
// orchestrator only ever calls through the interface and never inspects
// platform identity itself.
package adapter

import (
	"github.com/agentpm/agentpm/internal/manifest"
)

// ComponentKind identifies one component family in a plugin manifest
type ComponentKind string

const (
	KindSkill       ComponentKind = "skill"
	KindCommand     ComponentKind = "command"
	KindAgent       ComponentKind = "agent"
	KindRule        ComponentKind = "rule"
	KindInstruction ComponentKind = "instruction"
	KindPrompt      ComponentKind = "prompt"
	KindAgentFile   ComponentKind = "agent-file"
)

// FileWrite is one rendered file the executor should write
type FileWrite struct {
	// Path is relative to the project root
	Path    string
	Content string
}

// InstallationPlan is a pure data value describing the filesystem effects
// of installing one component. The executor is the only interpreter.
type InstallationPlan struct {
	// Dirs are directories to create, relative to the project root
	Dirs []string

	// Files are rendered content writes
	Files []FileWrite

	// Copies maps absolute source paths to project-relative destinations
	Copies map[string]string
}

// Adapter is the platform-specific policy consumed by the orchestrator
type Adapter interface {
	// Name identifies the platform (informational only)
	Name() string

	// PreInstall runs once before a batch with every parsed manifest that
	// could be fetched ahead of time.
	PreInstall(root string, manifests []*manifest.Manifest) error

	// PostInstall runs once after a batch with the manifests of plugins
	// that installed successfully.
	PostInstall(root string, manifests []*manifest.Manifest) error

	// ValidateCompatibility returns warnings for a manifest; it never blocks
	ValidateCompatibility(m *manifest.Manifest) []string

	// TemplateVariables supplies the platform's render-context variables
	TemplateVariables(root string, m *manifest.Manifest) map[string]any

	// ComponentDir returns the platform directory for a component kind,
	// relative to the project root.
	ComponentDir(kind ComponentKind) string

	// PlanComponent turns one declared component plus its rendered context
	// into an installation plan.
	PlanComponent(kind ComponentKind, c manifest.Component, m *manifest.Manifest, rendered, root, sourceDir string) (*InstallationPlan, error)

	// GenerateServerConfig produces the platform config entry for one
	// auxiliary server declaration.
	GenerateServerConfig(srv manifest.MCPServer, m *manifest.Manifest, root, sourceDir string) (map[string]any, error)

	// MergeServerConfig merges incoming server entries into existing ones
	MergeServerConfig(existing, incoming map[string]any) map[string]any

	// AuxConfigPath returns where the auxiliary server config lives,
	// relative to the project root; "" disables aux config entirely.
	AuxConfigPath(root string) string
}
