// Package version wraps the upstream repository's dotted version tokens
// (folder names like "5.15.2" or "6.7.0") and the user-facing spec syntax
// ("6.*", ">=6.2,<6.5") in a single ordering-aware type.
package version

import (
	"fmt"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
	"golang.org/x/mod/semver"
)

// Version is an immutable, orderable upstream release identifier.
type Version struct {
	raw string
	sv  *mmsemver.Version
}

// Parse validates and wraps a dotted version token such as "5.15.2".
// It runs two checks, matching neither implementation alone: x/mod/semver's
// IsValid plus a component count reject anything that is not a well-formed
// three-component semantic version once a "v" prefix is added, then Masterminds/semver
// builds the orderable value used for comparisons and pre-release ranges.
func Parse(raw string) (Version, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Version{}, fmt.Errorf("version: empty version string")
	}
	canonical := trimmed
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}
	if !semver.IsValid(canonical) {
		return Version{}, fmt.Errorf("version: %q is not a well-formed dotted version", raw)
	}
	// IsValid also accepts the shorthands "v6" and "v6.7"; require all three
	// components so a bare folder digit run like "670" is not read as 670.0.0.
	core := canonical
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	if strings.Count(core, ".") != 2 {
		return Version{}, fmt.Errorf("version: %q is not a three-component dotted version", raw)
	}
	sv, err := mmsemver.NewVersion(trimmed)
	if err != nil {
		return Version{}, fmt.Errorf("version: %q: %w", raw, err)
	}
	return Version{raw: trimmed, sv: sv}, nil
}

// MustParse panics on invalid input. Reserved for constants built into the
// binary (tests, defaults); never call it on user- or mirror-supplied input.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original dotted form, e.g. "5.15.2".
func (v Version) String() string {
	return v.raw
}

// Major returns the leading version component, used to decide module
// short-name normalization (addons.* stripped for MAJOR >= 6).
func (v Version) Major() uint64 {
	return v.sv.Major()
}

// Compare returns -1, 0, or 1 following semver precedence rules, including
// pre-release ordering (alpha < beta < rc < final).
func (v Version) Compare(other Version) int {
	return v.sv.Compare(other.sv)
}

// LessThan reports whether v orders strictly before other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports whether v and other denote the same release.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Minor returns the second version component, used alongside Major to gate
// patch actions that only apply from a given release onward (e.g. the
// pre-5.14 core-library prefix rewrite).
func (v Version) Minor() uint64 {
	return v.sv.Minor()
}

// FolderToken returns the compact digit-run upstream uses in package names
// and version-folder segments, e.g. "5.15.2" -> "5152", "6.7.0" -> "670".
// It concatenates major, minor and patch without separators.
func (v Version) FolderToken() string {
	return fmt.Sprintf("%d%d%d", v.sv.Major(), v.sv.Minor(), v.sv.Patch())
}

// ParseFolderName is FolderToken's inverse: it decodes a version-folder
// directory entry of the form "qt{MAJOR}_{MAJOR}{MINOR}{PATCH}" (and the
// historic variants version discovery also accepts: the bare digit run
// without a "qt{MAJOR}_" prefix, and the older "qt5_"/"qt6_" mixing, which
// is just a different literal prefix over the same digit-run suffix). The
// major and patch components of the digit run are always exactly one
// digit for every release the upstream repository has ever published, so
// stripping one digit off each end unambiguously recovers the minor
// component in between, however many digits it takes ("5152" -> 5, 15, 2).
func ParseFolderName(name string) (Version, error) {
	token := name
	if rest, ok := strings.CutPrefix(name, "qt"); ok {
		idx := strings.IndexByte(rest, '_')
		if idx < 0 {
			return Version{}, fmt.Errorf("version: %q is not a folder-token version", name)
		}
		token = rest[idx+1:]
	}
	if len(token) < 2 || !isDigits(token) {
		return Version{}, fmt.Errorf("version: %q is not a folder-token version", name)
	}
	major := token[:1]
	patch := token[len(token)-1:]
	minor := "0"
	if len(token) > 2 {
		minor = token[1 : len(token)-1]
	}
	return Parse(major + "." + minor + "." + patch)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
