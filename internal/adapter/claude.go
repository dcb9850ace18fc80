package adapter

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/agentpm/agentpm/internal/manifest"
)

// ClaudeAdapter installs plugin components into a .claude project layout
type ClaudeAdapter struct{}

// NewClaudeAdapter creates the claude platform adapter
func NewClaudeAdapter() *ClaudeAdapter {
	return &ClaudeAdapter{}
}

func (a *ClaudeAdapter) Name() string {
	return "claude"
}

// PreInstall makes sure the platform directory exists
func (a *ClaudeAdapter) PreInstall(root string, manifests []*manifest.Manifest) error {
	return os.MkdirAll(filepath.Join(root, ".claude"), 0755)
}

func (a *ClaudeAdapter) PostInstall(root string, manifests []*manifest.Manifest) error {
	return nil
}

// ValidateCompatibility warns about declarations the platform cannot use
func (a *ClaudeAdapter) ValidateCompatibility(m *manifest.Manifest) []string {
	var warnings []string
	for _, srv := range m.MCPServers {
		switch srv.Transport {
		case "", "stdio", "http", "sse":
		default:
			warnings = append(warnings, fmt.Sprintf(
				"server %s: unsupported transport %q, entry will be written as-is", srv.Name, srv.Transport))
		}
		if srv.Command == "" && srv.URL == "" {
			warnings = append(warnings, fmt.Sprintf("server %s: no command or url declared", srv.Name))
		}
	}
	return warnings
}

func (a *ClaudeAdapter) TemplateVariables(root string, m *manifest.Manifest) map[string]any {
	return map[string]any{
		"platform": map[string]any{
			"name": a.Name(),
			"root": root,
		},
		"plugin": map[string]any{
			"name":    m.Name,
			"version": m.Version,
		},
	}
}

func (a *ClaudeAdapter) ComponentDir(kind ComponentKind) string {
	switch kind {
	case KindSkill:
		return ".claude/skills"
	case KindCommand:
		return ".claude/commands"
	case KindAgent:
		return ".claude/agents"
	case KindRule:
		return ".claude/rules"
	case KindInstruction:
		return ".claude/instructions"
	case KindPrompt:
		return ".claude/prompts"
	case KindAgentFile:
		return ".claude/memories"
	default:
		return ".claude"
	}
}

// PlanComponent maps a component to concrete writes. Skills become a
// directory with a SKILL.md plus supporting file copies; the agent-file
// injection becomes one memory file per plugin; everything else is a single
// markdown file named after the component.
func (a *ClaudeAdapter) PlanComponent(kind ComponentKind, c manifest.Component, m *manifest.Manifest, rendered, root, sourceDir string) (*InstallationPlan, error) {
	dir := a.ComponentDir(kind)

	switch kind {
	case KindSkill:
		if c.Name == "" {
			return nil, fmt.Errorf("skill without a name")
		}
		skillDir := path.Join(dir, c.Name)
		plan := &InstallationPlan{
			Dirs:  []string{dir, skillDir},
			Files: []FileWrite{{Path: path.Join(skillDir, "SKILL.md"), Content: rendered}},
		}
		if len(c.Files) > 0 {
			plan.Copies = make(map[string]string, len(c.Files))
			for _, rel := range c.Files {
				src := filepath.Join(sourceDir, filepath.FromSlash(rel))
				plan.Copies[src] = path.Join(skillDir, path.Base(rel))
			}
		}
		return plan, nil

	case KindAgentFile:
		return &InstallationPlan{
			Dirs:  []string{dir},
			Files: []FileWrite{{Path: path.Join(dir, m.Name+".md"), Content: rendered}},
		}, nil

	default:
		if c.Name == "" {
			return nil, fmt.Errorf("%s without a name", kind)
		}
		plan := &InstallationPlan{
			Dirs:  []string{dir},
			Files: []FileWrite{{Path: path.Join(dir, c.Name+".md"), Content: rendered}},
		}
		if len(c.Files) > 0 {
			plan.Copies = make(map[string]string, len(c.Files))
			for _, rel := range c.Files {
				src := filepath.Join(sourceDir, filepath.FromSlash(rel))
				plan.Copies[src] = path.Join(dir, path.Base(rel))
			}
		}
		return plan, nil
	}
}

// GenerateServerConfig produces one .mcp.json server entry
func (a *ClaudeAdapter) GenerateServerConfig(srv manifest.MCPServer, m *manifest.Manifest, root, sourceDir string) (map[string]any, error) {
	if srv.Name == "" {
		return nil, fmt.Errorf("server without a name")
	}

	entry := make(map[string]any)
	if srv.URL != "" {
		entry["type"] = transportOrDefault(srv.Transport, "http")
		entry["url"] = srv.URL
	} else {
		entry["command"] = srv.Command
		if len(srv.Args) > 0 {
			entry["args"] = srv.Args
		}
	}
	if len(srv.Env) > 0 {
		env := make(map[string]any, len(srv.Env))
		for k, v := range srv.Env {
			env[k] = v
		}
		entry["env"] = env
	}
	return map[string]any{srv.Name: entry}, nil
}

// MergeServerConfig merges incoming server entries over existing ones,
// replacing whole entries on name collision.
func (a *ClaudeAdapter) MergeServerConfig(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

func (a *ClaudeAdapter) AuxConfigPath(root string) string {
	return filepath.Join(root, ".mcp.json")
}

func transportOrDefault(transport, fallback string) string {
	if transport == "" {
		return fallback
	}
	return transport
}
