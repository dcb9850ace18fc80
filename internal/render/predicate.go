package render

import (
	"fmt"
	"strings"
)

// EvalPredicate evaluates a conditional-item predicate against the template
// context. Supported forms:
//
//	path                  truthiness of the looked-up value
//	not <predicate>       negation
//	a == b / a != b       string equality of operands
//	a in b                membership (list operand) or substring (string)
//
// Operands are dotted paths or single/double quoted literals.
func EvalPredicate(expr string, vars map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, fmt.Errorf("empty predicate")
	}

	tokens, err := tokenize(expr)
	if err != nil {
		return false, err
	}

	if tokens[0] == "not" {
		if len(tokens) == 1 {
			return false, fmt.Errorf("predicate %q: not requires an operand", expr)
		}
		inner, err := evalTokens(tokens[1:], vars)
		if err != nil {
			return false, err
		}
		return !inner, nil
	}

	return evalTokens(tokens, vars)
}

func evalTokens(tokens []string, vars map[string]any) (bool, error) {
	switch len(tokens) {
	case 1:
		v, err := operand(tokens[0], vars)
		if err != nil {
			return false, err
		}
		return Truthy(v), nil

	case 3:
		left, err := operand(tokens[0], vars)
		if err != nil {
			return false, err
		}
		right, err := operand(tokens[2], vars)
		if err != nil {
			return false, err
		}
		switch tokens[1] {
		case "==":
			return stringify(left) == stringify(right), nil
		case "!=":
			return stringify(left) != stringify(right), nil
		case "in":
			return contains(right, left), nil
		default:
			return false, fmt.Errorf("unsupported operator %q", tokens[1])
		}

	default:
		return false, fmt.Errorf("malformed predicate %q", strings.Join(tokens, " "))
	}
}

func operand(token string, vars map[string]any) (any, error) {
	if len(token) >= 2 {
		if (token[0] == '\'' && token[len(token)-1] == '\'') ||
			(token[0] == '"' && token[len(token)-1] == '"') {
			return token[1 : len(token)-1], nil
		}
	}
	v, ok := Lookup(vars, token)
	if !ok {
		return nil, fmt.Errorf("undefined variable %q", token)
	}
	return v, nil
}

func contains(haystack, needle any) bool {
	want := stringify(needle)
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if stringify(item) == want {
				return true
			}
		}
	case []string:
		for _, item := range h {
			if item == want {
				return true
			}
		}
	case string:
		return strings.Contains(h, want)
	}
	return false
}

// tokenize splits on whitespace but keeps quoted literals intact
func tokenize(expr string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	var quote byte

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			current.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			current.WriteByte(c)
		case c == ' ' || c == '\t':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in predicate %q", expr)
	}
	flush()

	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty predicate")
	}
	return tokens, nil
}
