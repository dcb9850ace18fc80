package registry

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/agentpm/agentpm/internal/errors"
)

// pickVersion selects the highest available version satisfying the request.
// An empty request means latest; an exact version must be present verbatim.
func pickVersion(available []string, request string) (string, error) {
	var versions semver.Collection
	byString := make(map[*semver.Version]string, len(available))
	for _, raw := range available {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		versions = append(versions, v)
		byString[v] = raw
	}
	if len(versions) == 0 {
		return "", errors.ErrVersionNotFound
	}
	sort.Sort(sort.Reverse(versions))

	if request == "" {
		return byString[versions[0]], nil
	}

	if exact, err := semver.NewVersion(request); err == nil {
		for _, v := range versions {
			if v.Equal(exact) {
				return byString[v], nil
			}
		}
		return "", fmt.Errorf("%w: %s", errors.ErrVersionNotFound, request)
	}

	constraint, err := semver.NewConstraint(request)
	if err != nil {
		return "", fmt.Errorf("invalid version range %q: %w", request, err)
	}
	for _, v := range versions {
		if constraint.Check(v) {
			return byString[v], nil
		}
	}
	return "", fmt.Errorf("%w: %s", errors.ErrVersionNotFound, request)
}

// IsExactVersion reports whether s parses as a single semantic version
func IsExactVersion(s string) bool {
	_, err := semver.StrictNewVersion(s)
	return err == nil
}
