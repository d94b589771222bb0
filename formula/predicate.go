package formula

import (
	"fmt"
	"strings"
)

// A Predicate decides whether something applies to a formula version.
//
// Predicates are parsed from short expressions so that formula records stay
// declarative:
//
//	2020.06            exactly 2020.06 (same as ==2020.06)
//	>=2019.10,<2020.06 conjunction of comparisons
//	head               development revisions only
//	*                  every version, as is the empty expression
//
// The comparison operators are ==, !=, <, <=, > and >=. Comparisons order
// versions with CompareVersions, so head satisfies ">=X" for every release X.
type Predicate struct {
	expr  string
	terms []term
}

type term struct {
	op  string
	ver Version
}

// Always is the predicate that matches every version.
var Always = Predicate{expr: "*"}

var operators = []string{"==", "!=", "<=", ">=", "<", ">"}

// ParsePredicate parses a predicate expression. The empty string is Always.
func ParsePredicate(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "*" {
		return Always, nil
	}
	p := Predicate{expr: expr}
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Predicate{}, fmt.Errorf("predicate %q: empty term", expr)
		}
		t := term{op: "=="}
		for _, op := range operators {
			if strings.HasPrefix(part, op) {
				t.op = op
				part = strings.TrimSpace(part[len(op):])
				break
			}
		}
		if part == "" {
			return Predicate{}, fmt.Errorf("predicate %q: missing version after %s", expr, t.op)
		}
		if strings.ContainsAny(part, "<>=! ") {
			return Predicate{}, fmt.Errorf("predicate %q: malformed term %q", expr, part)
		}
		t.ver = Version(part)
		p.terms = append(p.terms, t)
	}
	return p, nil
}

// MustParsePredicate is like ParsePredicate but panics on error.
func MustParsePredicate(expr string) Predicate {
	p, err := ParsePredicate(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Only returns the predicate matching exactly v.
func Only(v Version) Predicate {
	return Predicate{expr: string(v), terms: []term{{op: "==", ver: v}}}
}

// Since returns the predicate matching v and every later version.
func Since(v Version) Predicate {
	return Predicate{expr: ">=" + string(v), terms: []term{{op: ">=", ver: v}}}
}

// Before returns the predicate matching every version earlier than v.
func Before(v Version) Predicate {
	return Predicate{expr: "<" + string(v), terms: []term{{op: "<", ver: v}}}
}

// Match reports whether v satisfies every term of p.
func (p Predicate) Match(v Version) bool {
	for _, t := range p.terms {
		if !t.match(v) {
			return false
		}
	}
	return true
}

// IsAlways reports whether p matches every version.
func (p Predicate) IsAlways() bool {
	return len(p.terms) == 0
}

func (p Predicate) String() string {
	if p.expr == "" {
		return "*"
	}
	return p.expr
}

func (t term) match(v Version) bool {
	c := v.Compare(t.ver)
	switch t.op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}
