// Package options maps a formula's logical build options to the literal
// flags of the version being built.
package options

import "github.com/goplus/llbrew/formula"

// Row is one resolved option.
type Row struct {
	Name     string // logical name
	Flag     string // literal flag name passed to the build tool
	Value    string
	Prefixed bool
}

// Literal returns the option as FLAG=VALUE.
func (r Row) Literal() string {
	return r.Flag + "=" + r.Value
}

// Resolve returns the literal FLAG=VALUE strings for f in declaration order.
// Options that do not exist for f's version are omitted.
func Resolve(f *formula.Formula) []string {
	rows := Table(f)
	flags := make([]string, 0, len(rows))
	for _, r := range rows {
		flags = append(flags, r.Literal())
	}
	return flags
}

// Table is like Resolve but keeps the logical name and naming decision of
// each option.
func Table(f *formula.Formula) []Row {
	v := f.Version()
	naming := f.Naming()
	var rows []Row
	for _, o := range f.Options() {
		if !o.Applies.Match(v) {
			continue
		}
		prefixed := Prefixed(v, naming, o)
		flag := o.Flag
		if prefixed {
			flag = naming.Prefix + o.Flag
		}
		rows = append(rows, Row{Name: o.Name, Flag: flag, Value: o.Value, Prefixed: prefixed})
	}
	return rows
}

// Prefixed reports whether option o of version v is written with the
// naming prefix.
//
// Under RuleAuto the flag is prefixed for head builds, for versions at or
// after the naming change, and for options introduced at or after the
// change regardless of the version being built.
func Prefixed(v formula.Version, naming formula.Naming, o formula.Option) bool {
	if naming.Prefix == "" {
		return false
	}
	switch o.Rule {
	case formula.RuleAlways:
		return true
	case formula.RuleNever:
		return false
	}
	if naming.Since == "" || v.IsHead() {
		return true
	}
	if v.AtLeast(naming.Since) {
		return true
	}
	return o.Introduced != "" && o.Introduced.AtLeast(naming.Since)
}
