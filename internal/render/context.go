package render

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/agentpm/agentpm/internal/errors"
	"github.com/agentpm/agentpm/internal/manifest"
)

// ResolveContext renders a component's context spec against the template
// context. List items are rendered in order and joined with newlines.
//
// Missing files are not fatal: a missing single-path context renders an
// inert placeholder comment, a missing list item is skipped. A conditional
// item whose predicate fails to evaluate is skipped. Template errors inside
// file content are fatal and name the offending file.
func ResolveContext(spec manifest.ContextSpec, sourceDir string, vars map[string]any) (string, error) {
	if spec.IsZero() {
		return "", nil
	}

	var parts []string
	for _, item := range spec.Items {
		if item.When != "" {
			ok, err := EvalPredicate(item.When, vars)
			if err != nil || !ok {
				continue
			}
		}

		rel := cleanRel(item.Path)
		data, err := os.ReadFile(filepath.Join(sourceDir, rel))
		if err != nil {
			if os.IsNotExist(err) {
				if spec.Single {
					return "<!-- Context file not found: " + rel + " -->\n", nil
				}
				continue
			}
			return "", errors.NewRenderError(rel, err)
		}

		rendered, err := Render(string(data), vars)
		if err != nil {
			return "", errors.NewRenderError(rel, err)
		}
		parts = append(parts, rendered)
	}

	return strings.Join(parts, "\n"), nil
}

func cleanRel(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
