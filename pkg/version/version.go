// Package version provides the semantic-version ordering used by the
// deployment queue. Canonical MAJOR.MINOR.PATCH versions (including
// prerelease suffixes) go through Masterminds semver; versions with
// additional dot-separated components are compared as extra numeric
// tiers, a shape some build pipelines emit.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a parsed, comparable deployment version.
type Version struct {
	sv    *semver.Version // set for canonical semver forms
	tiers []uint64        // set for extended dotted forms
}

// Parse parses a version string. Canonical semver (including
// prerelease and build metadata) is tried first; otherwise the string
// must be four or more dot-separated components, numeric in every
// tier.
func Parse(s string) (Version, error) {
	if sv, err := semver.StrictNewVersion(s); err == nil {
		return Version{sv: sv}, nil
	}

	parts := strings.Split(s, ".")
	if len(parts) < 4 {
		return Version{}, fmt.Errorf("parsing version %q: not a semantic version", s)
	}
	tiers := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("parsing version %q: tier %d is not numeric", s, i)
		}
		tiers[i] = n
	}
	return Version{tiers: tiers}, nil
}

// Compare returns -1, 0, or 1 when v is older than, equal to, or newer
// than o under major, minor, patch (and further tier) precedence.
func (v Version) Compare(o Version) int {
	if v.sv != nil && o.sv != nil {
		return v.sv.Compare(o.sv)
	}
	return compareTiers(v.numericTiers(), o.numericTiers())
}

// Less reports whether v orders strictly before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) numericTiers() []uint64 {
	if v.sv != nil {
		return []uint64{v.sv.Major(), v.sv.Minor(), v.sv.Patch()}
	}
	return v.tiers
}

// compareTiers compares two tier slices, treating missing trailing
// tiers as zero.
func compareTiers(a, b []uint64) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv uint64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Supersedes reports whether current supersedes candidate: both
// versions parse and candidate orders strictly before current. A
// candidate that cannot be parsed is never superseded; the auto-skip
// pass leaves such rows untouched rather than failing the batch.
func Supersedes(current, candidate string) bool {
	cur, err := Parse(current)
	if err != nil {
		return false
	}
	cand, err := Parse(candidate)
	if err != nil {
		return false
	}
	return cand.Less(cur)
}
