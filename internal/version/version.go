// Package version implements parsing, comparison, and rendering of Debian
// package version strings: [epoch:]upstream_version[-debian_revision].
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#s-f-version
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the parsed form of a Debian version string.
type Version struct {
	Epoch    uint32
	Upstream string
	Revision string
}

// DisplayMode controls how Render shows the epoch.
type DisplayMode int

const (
	// DisplayNonambig omits "0:" unless the upstream or revision otherwise
	// contains a ':'. This is the default and matches dpkg's own rendering.
	DisplayNonambig DisplayMode = iota
	// DisplayNever never shows the epoch, even if non-zero.
	DisplayNever
	// DisplayAlways always shows the epoch, even if zero.
	DisplayAlways
)

// Parse parses a Debian version string under strict validation rules.
func Parse(s string) (Version, error) {
	return parse(s, false)
}

// ParseLax parses a Debian version string, downgrading some errors (such as
// an upstream not starting with a digit) to warnings that are ignored.
func ParseLax(s string) (Version, error) {
	return parse(s, true)
}

func parse(s string, lax bool) (Version, error) {
	var v Version

	trimmed := strings.TrimSpace(s)
	if trimmed != s {
		// Leading/trailing blanks are fine to trim; embedded whitespace is not.
		s = trimmed
	}
	if s == "" {
		return v, fmt.Errorf("version string is empty")
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return v, fmt.Errorf("version string has embedded whitespace")
		}
	}

	rest := s
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		epochStr := s[:idx]
		rest = s[idx+1:]
		if epochStr == "" {
			return v, fmt.Errorf("epoch is empty")
		}
		for _, r := range epochStr {
			if r < '0' || r > '9' {
				return v, fmt.Errorf("epoch contains invalid character %q", r)
			}
		}
		n, err := strconv.ParseUint(epochStr, 10, 32)
		if err != nil {
			return v, fmt.Errorf("epoch too big")
		}
		v.Epoch = uint32(n)
	}

	upstream := rest
	revision := ""
	if idx := strings.LastIndexByte(rest, '-'); idx >= 0 {
		upstream = rest[:idx]
		revision = rest[idx+1:]
	}

	if upstream == "" {
		return v, fmt.Errorf("upstream version is empty")
	}
	if !lax {
		if c := upstream[0]; c < '0' || c > '9' {
			return v, fmt.Errorf("upstream version does not start with a digit")
		}
	}
	for _, r := range upstream {
		if !isUpstreamChar(r) {
			return v, fmt.Errorf("upstream version contains invalid character %q", r)
		}
	}
	for _, r := range revision {
		if !isRevisionChar(r) {
			return v, fmt.Errorf("revision contains invalid character %q", r)
		}
	}

	v.Upstream = upstream
	v.Revision = revision
	return v, nil
}

func isUpstreamChar(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '.' || r == '+' || r == '~' || r == ':' || r == '-':
		return true
	}
	return false
}

func isRevisionChar(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '.' || r == '+' || r == '~':
		return true
	}
	return false
}

// Render produces the canonical string form of v.
func (v Version) Render(mode DisplayMode) string {
	var b strings.Builder
	switch mode {
	case DisplayAlways:
		fmt.Fprintf(&b, "%d:", v.Epoch)
	case DisplayNever:
		// never show epoch
	default: // DisplayNonambig
		if v.Epoch != 0 || strings.ContainsRune(v.Upstream, ':') || strings.ContainsRune(v.Revision, ':') {
			fmt.Fprintf(&b, "%d:", v.Epoch)
		}
	}
	b.WriteString(v.Upstream)
	if v.Revision != "" {
		b.WriteByte('-')
		b.WriteString(v.Revision)
	}
	return b.String()
}

// String renders v using the default (nonambig) display mode.
func (v Version) String() string {
	return v.Render(DisplayNonambig)
}

// IsZero reports whether v is the zero value (no version at all, as opposed
// to the parsed version "0").
func (v Version) IsZero() bool {
	return v.Epoch == 0 && v.Upstream == "" && v.Revision == ""
}

// order returns a sortable rank for a single character within a version
// component comparison, matching dpkg's verrevcmp: letters sort before all
// other characters, '~' sorts before everything (including the end of
// string), and the end of string sorts below any other non-'~' character.
func order(r rune, present bool) int {
	if !present {
		// end of run
		return -1
	}
	if r == '~' {
		return -2
	}
	if r >= '0' && r <= '9' {
		return 0
	}
	if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return int(r)
	}
	return int(r) + 256
}

// compareComponent implements dpkg's verrevcmp: alternating non-digit and
// digit runs, non-digit runs compared character by character with the
// ordering in `order`, digit runs compared as integers with leading zeros
// ignored.
func compareComponent(a, b string) int {
	for {
		// Non-digit run.
		ai, bi := 0, 0
		for ai < len(a) && !isDigit(a[ai]) {
			ai++
		}
		for bi < len(b) && !isDigit(b[bi]) {
			bi++
		}
		an, bn := a[:ai], b[:bi]
		a, b = a[ai:], b[bi:]

		for i := 0; ; i++ {
			var ar, br rune
			var aok, bok bool
			if i < len(an) {
				ar, aok = rune(an[i]), true
			}
			if i < len(bn) {
				br, bok = rune(bn[i]), true
			}
			if !aok && !bok {
				break
			}
			oa, ob := order(ar, aok), order(br, bok)
			if oa != ob {
				if oa < ob {
					return -1
				}
				return 1
			}
		}

		// Digit run.
		ai = 0
		for ai < len(a) && isDigit(a[ai]) {
			ai++
		}
		bi = 0
		for bi < len(b) && isDigit(b[bi]) {
			bi++
		}
		an, bn = a[:ai], b[:bi]
		a, b = a[ai:], b[bi:]

		av := parseDigitRun(an)
		bv := parseDigitRun(bn)
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}

		if a == "" && b == "" {
			return 0
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func parseDigitRun(s string) int64 {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Pathologically long digit runs: compare by length then value,
		// which a plain string compare on the (already zero-trimmed)
		// digits achieves for equal-length strings; dpkg itself uses a
		// C `long` and would overflow identically in practice.
		return int64(len(s))
	}
	return n
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b,
// ordering first by epoch, then upstream version, then revision.
func Compare(a, b Version) int {
	if a.Epoch != b.Epoch {
		if a.Epoch < b.Epoch {
			return -1
		}
		return 1
	}
	if r := compareComponent(a.Upstream, b.Upstream); r != 0 {
		return r
	}
	return compareComponent(a.Revision, b.Revision)
}

// Relation is a dependency version relational operator.
type Relation int

const (
	RelNone Relation = iota
	RelEq
	RelLt
	RelLe
	RelGt
	RelGe
)

// Satisfies reports whether version `it` satisfies the relation `rel`
// against the reference version `ref`.
func Satisfies(it Version, rel Relation, ref Version) bool {
	if rel == RelNone {
		return true
	}
	c := Compare(it, ref)
	switch rel {
	case RelLe:
		return c <= 0
	case RelGe:
		return c >= 0
	case RelLt:
		return c < 0
	case RelGt:
		return c > 0
	case RelEq:
		return c == 0
	default:
		return false
	}
}
