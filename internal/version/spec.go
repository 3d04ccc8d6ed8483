package version

import (
	"fmt"

	mmsemver "github.com/Masterminds/semver/v3"
)

// Spec is a user-supplied version selector: an exact version, a glob such
// as "6.*", or a range such as ">=6.2,<6.5". It never orders two Versions
// itself — it only answers whether a given Version satisfies it.
type Spec struct {
	raw string
	c   *mmsemver.Constraints
}

// ParseSpec parses a version-selector string.
func ParseSpec(raw string) (Spec, error) {
	c, err := mmsemver.NewConstraint(raw)
	if err != nil {
		return Spec{}, fmt.Errorf("version: invalid version spec %q: %w", raw, err)
	}
	return Spec{raw: raw, c: c}, nil
}

// String returns the original selector text.
func (s Spec) String() string {
	return s.raw
}

// Matches reports whether v satisfies the spec.
func (s Spec) Matches(v Version) bool {
	return s.c.Check(v.sv)
}

// Latest returns the highest Version in candidates that satisfies the spec.
// It returns ok=false when none match. candidates need not be sorted.
func (s Spec) Latest(candidates []Version) (Version, bool) {
	var best Version
	found := false
	for _, v := range candidates {
		if !s.Matches(v) {
			continue
		}
		if !found || best.LessThan(v) {
			best = v
			found = true
		}
	}
	return best, found
}
