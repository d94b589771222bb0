package formula

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Head is the version identifier of a development revision.
const Head = "head"

// Version is a formula version identifier: a release tag ("2020.06"), a
// git-describe string ("2020.06-421-g439945c") or Head.
type Version string

// IsHead reports whether v tracks the latest unreleased source state.
func (v Version) IsHead() bool {
	return strings.EqualFold(string(v), Head)
}

func (v Version) String() string {
	return string(v)
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to
// or after w. Head sorts after every release.
func (v Version) Compare(w Version) int {
	return CompareVersions(string(v), string(w))
}

// Less reports whether v sorts before w.
func (v Version) Less(w Version) bool {
	return v.Compare(w) < 0
}

// AtLeast reports whether v sorts at or after w.
func (v Version) AtLeast(w Version) bool {
	return v.Compare(w) >= 0
}

// CompareVersions orders two version identifiers.
//
// Semantic versions ("v1.2.3") compare by semver rules. Anything else is
// compared run by run: digit runs numerically, other runs bytewise, with '~'
// sorting before everything so that "1.0~rc1" < "1.0".
func CompareVersions(a, b string) int {
	ah, bh := Version(a).IsHead(), Version(b).IsHead()
	switch {
	case ah && bh:
		return 0
	case ah:
		return 1
	case bh:
		return -1
	}
	if semver.IsValid(a) && semver.IsValid(b) {
		return semver.Compare(a, b)
	}
	return sign(compareRuns(a, b))
}

func compareRuns(a, b string) int {
	for a != "" || b != "" {
		var as, bs string
		as, a = cutRun(a, false)
		bs, b = cutRun(b, false)
		if c := compareText(as, bs); c != 0 {
			return c
		}
		as, a = cutRun(a, true)
		bs, b = cutRun(b, true)
		if c := compareNumber(as, bs); c != 0 {
			return c
		}
	}
	return 0
}

// cutRun splits s after its leading run of digits (digits true) or
// non-digits (digits false).
func cutRun(s string, digits bool) (run, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:]
}

func compareText(a, b string) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var ca, cb byte
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		if oa, ob := weight(ca), weight(cb); oa != ob {
			return oa - ob
		}
	}
	return 0
}

func compareNumber(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

// weight orders characters inside a non-digit run: end of run and digits
// first, then letters, then other punctuation, '~' before all of them.
func weight(c byte) int {
	switch {
	case c == '~':
		return -1
	case c == 0 || isDigit(c):
		return 0
	case isAlpha(c):
		return int(c)
	default:
		return int(c) + 256
	}
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isAlpha(c byte) bool { return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') }

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
