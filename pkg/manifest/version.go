// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"strconv"
	"strings"
)

// DefaultVersion is assumed for modules whose manifest declares no version.
const DefaultVersion Version = "0.0.1"

type (
	// Version is a module version as written in its manifest.
	Version string

	// Triple is the numeric form of a Version: major, minor, patch.
	Triple [3]int
)

// String returns the string representation of the Version.
func (v Version) String() string { return string(v) }

// Triple parses the version for comparison. The value is lower-cased, one
// leading "v" is stripped, and at most three dot-separated parts are read.
// Missing parts are zero. If any part is not a non-negative integer the
// whole version parses as (0,0,0).
func (v Version) Triple() Triple {
	s := strings.ToLower(strings.TrimSpace(string(v)))
	s = strings.TrimPrefix(s, "v")

	var t Triple
	if s == "" {
		return t
	}

	parts := strings.Split(s, ".")
	if len(parts) > len(t) {
		parts = parts[:len(t)]
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || strings.HasPrefix(p, "+") {
			return Triple{}
		}
		t[i] = n
	}
	return t
}

// Compare returns -1, 0 or 1 comparing v with other component-wise.
func (v Version) Compare(other Version) int {
	return v.Triple().Compare(other.Triple())
}

// NewerThan reports whether v is strictly greater than other.
func (v Version) NewerThan(other Version) bool {
	return v.Compare(other) > 0
}

// Compare returns -1, 0 or 1 comparing t with other left to right.
func (t Triple) Compare(other Triple) int {
	for i := range t {
		switch {
		case t[i] < other[i]:
			return -1
		case t[i] > other[i]:
			return 1
		}
	}
	return 0
}

// String renders the triple as "major.minor.patch".
func (t Triple) String() string {
	return strconv.Itoa(t[0]) + "." + strconv.Itoa(t[1]) + "." + strconv.Itoa(t[2])
}
