// Package render expands context files against a template context.
//
// Templates use {{ expr }} placeholders where expr is a dotted-path lookup
// into the context map. Predicates on conditional context items support a
// restricted expression subset: dotted paths, quoted literals, ==, !=, in,
// and a leading not.
package render

import (
	"fmt"
	"strconv"
	"strings"
)

// Render substitutes every {{ expr }} placeholder in content. An unclosed
// placeholder or a lookup of an undefined variable is an error.
func Render(content string, vars map[string]any) (string, error) {
	var b strings.Builder
	rest := content

	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:start])

		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return "", fmt.Errorf("unclosed placeholder at offset %d", len(content)-len(rest)+start)
		}
		expr := strings.TrimSpace(rest[start+2 : start+end])
		if expr == "" {
			return "", fmt.Errorf("empty placeholder at offset %d", len(content)-len(rest)+start)
		}

		value, ok := Lookup(vars, expr)
		if !ok {
			return "", fmt.Errorf("undefined variable %q", expr)
		}
		b.WriteString(stringify(value))

		rest = rest[start+end+2:]
	}
}

// Lookup resolves a dotted path against nested maps
func Lookup(vars map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = vars

	for _, part := range parts {
		switch m := current.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Truthy reports whether a context value counts as true. Boolean-like
// strings "true", "1" and "yes" count as true; everything else is false
// unless it is a true bool or a non-zero number.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true
		}
		return false
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}
