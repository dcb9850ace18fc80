// Package errors holds sentinel and wrapper errors shared across apm packages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrPluginNotFound    = errors.New("plugin not found")
	ErrVersionNotFound   = errors.New("no version satisfies the requested range")
	ErrRegistryNotFound  = errors.New("registry not found")
	ErrNoLocator         = errors.New("no locator available for plugin")
	ErrUnsupportedScheme = errors.New("unsupported locator scheme")
	ErrPathTraversal     = errors.New("archive entry escapes extraction root")
	ErrNotInstalled      = errors.New("plugin is not installed")
	ErrIntegrityMismatch = errors.New("package integrity does not match lock entry")
)

// PluginError wraps errors with plugin context
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Op, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// NewPluginError creates a new plugin error
func NewPluginError(plugin, op string, err error) *PluginError {
	return &PluginError{Plugin: plugin, Op: op, Err: err}
}

// RegistryError wraps errors with registry/locator context
type RegistryError struct {
	Locator string
	Op      string
	Err     error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Locator, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// NewRegistryError creates a new registry error
func NewRegistryError(locator, op string, err error) *RegistryError {
	return &RegistryError{Locator: locator, Op: op, Err: err}
}

// RenderError marks a fatal template failure and names the offending file.
type RenderError struct {
	File string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.File, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// NewRenderError creates a new render error
func NewRenderError(file string, err error) *RenderError {
	return &RenderError{File: file, Err: err}
}
