// Package docversion provides the two-part version number used by
// controlled documents, rendered in the fixed "MM.mm" form, e.g.
// "01.00". Version numbers are assigned by the version chain and only
// ever move forward within a family.
package docversion

import (
	"fmt"
	"strconv"
	"strings"
)

// BumpKind selects how a version number is incremented.
type BumpKind string

const (
	// BumpMinor increments the minor component: 01.00 -> 01.01.
	BumpMinor BumpKind = "MINOR"

	// BumpMajor increments the major component and resets the minor
	// component: 01.03 -> 02.00.
	BumpMajor BumpKind = "MAJOR"
)

// IsValid reports whether the bump kind is one of the known values.
func (k BumpKind) IsValid() bool {
	return k == BumpMinor || k == BumpMajor
}

// Number is a document version number. The zero value is "00.00",
// which is never assigned to a real document; Initial is the first
// assigned number.
type Number struct {
	Major int
	Minor int
}

// Initial is the version number given to the first draft of a family.
var Initial = Number{Major: 1, Minor: 0}

// Parse parses a version number in "MM.mm" form. Both components must
// be non-negative integers; leading zeros are accepted.
func Parse(s string) (Number, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Number{}, fmt.Errorf("invalid version number %q: expected MM.mm", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return Number{}, fmt.Errorf("invalid major component in %q", s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return Number{}, fmt.Errorf("invalid minor component in %q", s)
	}
	return Number{Major: major, Minor: minor}, nil
}

// MustParse parses a version number and panics on failure. For tests
// and constants.
func MustParse(s string) Number {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String renders the number in the canonical zero-padded form.
// Components of 100 or more widen past two digits rather than wrap.
func (n Number) String() string {
	return fmt.Sprintf("%02d.%02d", n.Major, n.Minor)
}

// Compare returns -1, 0, or 1 ordering by (major, minor).
func (n Number) Compare(other Number) int {
	switch {
	case n.Major < other.Major:
		return -1
	case n.Major > other.Major:
		return 1
	case n.Minor < other.Minor:
		return -1
	case n.Minor > other.Minor:
		return 1
	default:
		return 0
	}
}

// Less reports whether n orders before other.
func (n Number) Less(other Number) bool {
	return n.Compare(other) < 0
}

// IsZero reports whether the number is the unassigned zero value.
func (n Number) IsZero() bool {
	return n.Major == 0 && n.Minor == 0
}

// Bump returns the next version number for the given bump kind. The
// receiver is unchanged.
func (n Number) Bump(kind BumpKind) (Number, error) {
	switch kind {
	case BumpMinor:
		return Number{Major: n.Major, Minor: n.Minor + 1}, nil
	case BumpMajor:
		return Number{Major: n.Major + 1, Minor: 0}, nil
	default:
		return Number{}, fmt.Errorf("unknown bump kind %q", kind)
	}
}
