package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/agentpm/agentpm/internal/errors"
)

// Fetch materializes a resolved package under scratchDir and returns its
// source directory. Local directories are used in place; archives are
// extracted; remote locators are downloaded or cloned first. The fetched
// bytes are always digested: a digest already declared on the package
// (registry index metadata) is verified against them, and the computed
// digest replaces it so callers compare locks against real content.
func Fetch(ctx context.Context, resolved *ResolvedPackage, scratchDir string) (string, error) {
	if resolved.LocalPath != "" {
		return fetchLocal(resolved, resolved.LocalPath, scratchDir)
	}

	locator := resolved.Locator
	switch {
	case strings.HasPrefix(locator, "file:"):
		return fetchLocal(resolved, LocatorPath(locator), scratchDir)

	case strings.HasPrefix(locator, SchemeGit):
		return fetchGit(ctx, resolved, scratchDir)

	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return fetchHTTP(ctx, resolved, scratchDir)

	case strings.HasPrefix(locator, "s3://"), strings.HasPrefix(locator, "az://"):
		return "", errors.NewRegistryError(locator, "fetch",
			fmt.Errorf("%w: object-storage fetch is not configured", errors.ErrUnsupportedScheme))

	default:
		return "", errors.NewRegistryError(locator, "fetch", errors.ErrUnsupportedScheme)
	}
}

func fetchLocal(resolved *ResolvedPackage, path, scratchDir string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.NewRegistryError(path, "fetch", err)
	}

	if info.IsDir() {
		digest, err := TreeDigest(path)
		if err != nil {
			return "", errors.NewRegistryError(path, "fetch", err)
		}
		if err := acceptDigest(resolved, digest); err != nil {
			return "", errors.NewRegistryError(path, "fetch", err)
		}
		return path, nil
	}

	if !IsArchivePath(path) {
		return "", errors.NewRegistryError(path, "fetch",
			fmt.Errorf("not a package directory or supported archive"))
	}

	digest, err := FileDigest(path)
	if err != nil {
		return "", errors.NewRegistryError(path, "fetch", err)
	}
	if err := acceptDigest(resolved, digest); err != nil {
		return "", errors.NewRegistryError(path, "fetch", err)
	}

	dest := filepath.Join(scratchDir, packageBaseName(path))
	return ExtractArchive(path, dest)
}

// acceptDigest checks a computed digest against any digest already declared
// on the package, then records the computed one.
func acceptDigest(resolved *ResolvedPackage, digest string) error {
	if resolved.Integrity != "" && resolved.Integrity != digest {
		return fmt.Errorf("%w: declared %s, fetched %s",
			errors.ErrIntegrityMismatch, resolved.Integrity, digest)
	}
	resolved.Integrity = digest
	return nil
}

func fetchHTTP(ctx context.Context, resolved *ResolvedPackage, scratchDir string) (string, error) {
	locator := resolved.Locator
	if !IsArchivePath(locator) {
		return "", errors.NewRegistryError(locator, "http fetch",
			fmt.Errorf("remote locator must point at a tar.gz or zip archive"))
	}

	archivePath, err := downloadFile(ctx, locator, scratchDir)
	if err != nil {
		return "", err
	}

	digest, err := FileDigest(archivePath)
	if err != nil {
		return "", errors.NewRegistryError(locator, "http fetch", err)
	}
	if err := acceptDigest(resolved, digest); err != nil {
		return "", errors.NewRegistryError(locator, "http fetch", err)
	}

	dest := filepath.Join(scratchDir, packageBaseName(locator))
	return ExtractArchive(archivePath, dest)
}

func downloadFile(ctx context.Context, url, scratchDir string) (string, error) {
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NewRegistryError(url, "http fetch", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", errors.NewRegistryError(url, "http fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewRegistryError(url, "http fetch", fmt.Errorf("status %d", resp.StatusCode))
	}

	out, err := os.Create(filepath.Join(scratchDir, packageBaseName(url)))
	if err != nil {
		return "", errors.NewRegistryError(url, "http fetch", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", errors.NewRegistryError(url, "http fetch", err)
	}
	return out.Name(), nil
}

func fetchGit(ctx context.Context, resolved *ResolvedPackage, scratchDir string) (string, error) {
	url, ref := gitTarget(resolved.Locator)
	dest := filepath.Join(scratchDir, packageBaseName(url))

	args := []string{"clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, url, dest)

	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errors.NewRegistryError(url, "git clone",
			fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out))))
	}

	digest, err := TreeDigest(dest)
	if err != nil {
		return "", errors.NewRegistryError(url, "git clone", err)
	}
	if err := acceptDigest(resolved, digest); err != nil {
		return "", errors.NewRegistryError(url, "git clone", err)
	}
	return dest, nil
}
