// Package version provides the semantic version value type used across
// installation discovery, registry lookups, and analyzer context hashing.
package version

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/t3up/analyzer/internal/messages"
)

// Version is an immutable semantic version of the form N.N[.N][-suffix].
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

// Parse converts a version string into a Version.
// A leading "v" is stripped and surrounding whitespace ignored.
func Parse(raw string) (Version, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "v")
	if trimmed == "" {
		return Version{}, fmt.Errorf(messages.VersionEmpty)
	}

	core := trimmed
	suffix := ""
	if idx := strings.IndexByte(trimmed, '-'); idx >= 0 {
		core = trimmed[:idx]
		suffix = trimmed[idx+1:]
		if suffix == "" {
			return Version{}, fmt.Errorf(messages.VersionEmptySuffixFmt, raw)
		}
	}

	parts := strings.Split(core, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf(messages.VersionInvalidFmt, raw)
	}

	var numbers [3]int
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil || value < 0 {
			return Version{}, fmt.Errorf(messages.VersionInvalidSegmentFmt, part, raw)
		}
		numbers[i] = value
	}

	return Version{Major: numbers[0], Minor: numbers[1], Patch: numbers[2], Suffix: suffix}, nil
}

// MustParse parses raw and panics on failure. Reserved for fixed literals.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical representation. Parse(v.String()) == v.
func (v Version) String() string {
	base := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix != "" {
		return base + "-" + v.Suffix
	}
	return base
}

// MarshalJSON encodes the version as its canonical string.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a canonical version string.
func (v *Version) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// IsZero reports whether v is the zero version.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Patch == 0 && v.Suffix == ""
}

// MajorOnly returns the version truncated to its major component.
func (v Version) MajorOnly() Version {
	return Version{Major: v.Major}
}

// Compare returns -1, 0, or 1 ordering v against other.
// A non-empty suffix orders strictly before the empty suffix at the same
// numeric components; suffixes compare lexicographically among themselves.
func (v Version) Compare(other Version) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInt(v.Patch, other.Patch); c != 0 {
		return c
	}
	if v.Suffix == other.Suffix {
		return 0
	}
	if v.Suffix == "" {
		return 1
	}
	if other.Suffix == "" {
		return -1
	}
	return strings.Compare(v.Suffix, other.Suffix)
}

// Less reports whether v orders before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// MatchesConstraint reports whether v satisfies a composer-style version
// constraint such as "^12.4", "~11.5.0", or ">=10.4 <13".
func (v Version) MatchesConstraint(constraint string) bool {
	normalized := normalizeConstraint(constraint)
	c, err := semver.NewConstraint(normalized)
	if err != nil {
		return false
	}
	sv, err := semver.NewVersion(v.String())
	if err != nil {
		return false
	}
	return c.Check(sv)
}

// normalizeConstraint rewrites composer constraint syntax that the semver
// library does not accept verbatim (" || " separators and "*" wildcards are
// already shared; composer's "A|B" single-pipe form is not).
func normalizeConstraint(constraint string) string {
	out := strings.TrimSpace(constraint)
	out = strings.ReplaceAll(out, "||", "\x00")
	out = strings.ReplaceAll(out, "|", "||")
	out = strings.ReplaceAll(out, "\x00", "||")
	return out
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
