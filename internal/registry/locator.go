package registry

import (
	"path/filepath"
	"strings"
)

// Recognized direct-locator schemes
const (
	SchemeFile  = "file"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeS3    = "s3"
	SchemeAzure = "az"
	SchemeGit   = "git+"
)

// IsDirectLocator reports whether s is a fully-qualified locator rather
// than a registry name.
func IsDirectLocator(s string) bool {
	return strings.HasPrefix(s, "file:") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "s3://") ||
		strings.HasPrefix(s, "az://") ||
		strings.HasPrefix(s, "git+")
}

// NormalizeLocator turns a source value into a locator. Bare paths become
// file: locators; everything else is passed through.
func NormalizeLocator(source string) string {
	if IsDirectLocator(source) {
		return source
	}
	return "file:" + source
}

// LocatorPath returns the filesystem path of a file: locator
func LocatorPath(locator string) string {
	return strings.TrimPrefix(locator, "file:")
}

// IsArchivePath reports whether a path looks like a supported archive
func IsArchivePath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".tar.gz") ||
		strings.HasSuffix(lower, ".tgz") ||
		strings.HasSuffix(lower, ".zip")
}

// gitTarget splits a git+ locator into clone URL and optional ref
// ("git+https://host/repo.git#v1" -> "https://host/repo.git", "v1").
func gitTarget(locator string) (url, ref string) {
	url = strings.TrimPrefix(locator, SchemeGit)
	if i := strings.LastIndex(url, "#"); i >= 0 {
		ref = url[i+1:]
		url = url[:i]
	}
	return url, ref
}

// packageBaseName guesses a scratch directory name from a locator
func packageBaseName(locator string) string {
	base := filepath.Base(strings.TrimSuffix(locator, "/"))
	base = strings.TrimSuffix(base, ".git")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "pkg"
	}
	return base
}
