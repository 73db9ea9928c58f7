package fetcher

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ErrNoMatchingTag is returned when no remote tag satisfies the spec's
// version constraint.
var ErrNoMatchingTag = errors.New("no tag matches version constraint")

// PickTag returns the highest semver tag satisfying the constraint.
// Tags that do not parse as semver are ignored. An empty constraint
// matches every parseable tag.
func PickTag(tags []string, constraint string) (string, error) {
	var rng *semver.Constraints
	if constraint != "" {
		var err error
		rng, err = semver.NewConstraint(constraint)
		if err != nil {
			return "", fmt.Errorf("parsing version constraint %q: %w", constraint, err)
		}
	}

	var bestTag string
	var bestVer *semver.Version
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil {
			continue
		}
		if rng != nil && !rng.Check(v) {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			bestVer = v
			bestTag = tag
		}
	}

	if bestTag == "" {
		return "", fmt.Errorf("constraint %q: %w", constraint, ErrNoMatchingTag)
	}
	return bestTag, nil
}
