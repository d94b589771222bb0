package formula

import "fmt"

// NamingRule decides whether an option's flag carries the naming prefix.
type NamingRule string

const (
	// RuleAuto prefixes the flag when the version or the option itself is
	// at or after the naming scheme change.
	RuleAuto NamingRule = "auto"
	// RuleAlways always prefixes the flag.
	RuleAlways NamingRule = "always"
	// RuleNever never prefixes the flag.
	RuleNever NamingRule = "never"
)

// ParseNamingRule parses a naming rule. The empty string means RuleAuto.
func ParseNamingRule(s string) (NamingRule, error) {
	switch NamingRule(s) {
	case "", RuleAuto:
		return RuleAuto, nil
	case RuleAlways, RuleNever:
		return NamingRule(s), nil
	}
	return "", fmt.Errorf("unknown naming rule %q", s)
}

// Naming describes when a package started to namespace its build flags.
// Flags of versions at or after Since are written as Prefix+Flag.
type Naming struct {
	Prefix string
	Since  Version
}

// Option is a logical build option. Flag is the unprefixed flag name; the
// literal name passed to the build tool depends on the formula's Naming.
type Option struct {
	Name       string
	Flag       string
	Value      string
	Introduced Version
	Rule       NamingRule

	// Applies restricts the versions the option exists for.
	Applies Predicate
}
