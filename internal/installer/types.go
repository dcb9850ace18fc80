// Package installer contains the install orchestrator: plugin-spec
// resolution against the lock store, the transactional plan executor, and
// the batch driver that ties resolution, fetching, rendering and the
// platform adapter together.
package installer

import (
	"fmt"
	"strings"
)

// PluginSpec is a requested install for one plugin. Exactly one resolution
// path applies: a direct source locator, or a registry lookup.
type PluginSpec struct {
	// Version is a range or exact version string (optional)
	Version string

	// Source is a direct locator overriding registry lookup (optional)
	Source string

	// Registry is a named registry or explicit registry URL (optional)
	Registry string
}

// Request pairs a plugin name with its spec
type Request struct {
	Name string
	Spec PluginSpec
}

// InstallResult is the outcome for one attempted plugin
type InstallResult struct {
	Plugin   string
	Version  string
	Success  bool
	Message  string
	Warnings []string
}

// InstallSummary aggregates a batch: one result per attempted plugin plus
// environment-variable warnings collected across successful installs.
type InstallSummary struct {
	Results     []InstallResult
	EnvWarnings []string
}

// Succeeded returns the number of successful results
func (s *InstallSummary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed results
func (s *InstallSummary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// conflictPreviewCap bounds how many offending paths an error message lists
const conflictPreviewCap = 5

// ConflictError reports destination paths that already exist on disk but
// are not managed by any plugin. It is raised before any write happens.
type ConflictError struct {
	Plugin string
	Paths  []string
}

func (e *ConflictError) Error() string {
	preview := e.Paths
	remainder := 0
	if len(preview) > conflictPreviewCap {
		remainder = len(preview) - conflictPreviewCap
		preview = preview[:conflictPreviewCap]
	}

	msg := fmt.Sprintf("plugin %s: %d existing file(s) would be overwritten: %s",
		e.Plugin, len(e.Paths), strings.Join(preview, ", "))
	if remainder > 0 {
		msg += fmt.Sprintf(" (and %d more)", remainder)
	}
	return msg
}
