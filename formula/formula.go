// Package formula models immutable build formulas.
//
// A Formula describes exactly one installable build of a package: where its
// source comes from, which version it is, what it depends on, which build
// options and patches apply, and how it is installed. Historical releases of
// the same package are distinct Formula values; there is no way to change a
// Formula after New returns it.
package formula

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/module"

	"github.com/goplus/llbrew/internal/errors"
)

// Spec is the mutable input from which a Formula is constructed.
type Spec struct {
	Name     string
	Desc     string
	Homepage string
	Version  Version
	Source   Source

	Dependencies []Dependency
	Naming       Naming
	Options      []Option
	Patches      []Patch
	Install      Install
}

// Formula is an immutable, validated build formula.
type Formula struct {
	spec Spec
}

// New validates spec and returns the Formula it describes. It fails with an
// errors.ErrMalformedFormula error when the version and source reference
// are inconsistent or any declaration is incomplete.
func New(spec Spec) (*Formula, error) {
	spec = clone(spec)
	if err := validate(&spec); err != nil {
		return nil, errors.Wrapf(err, errors.ErrMalformedFormula, "formula %s@%s", spec.Name, spec.Version).
			WithDetail("formula", spec.Name)
	}
	return &Formula{spec: spec}, nil
}

// Must is like New but panics on error. It is meant for formulas defined in
// Go source.
func Must(spec Spec) *Formula {
	f, err := New(spec)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Formula) Name() string     { return f.spec.Name }
func (f *Formula) Desc() string     { return f.spec.Desc }
func (f *Formula) Homepage() string { return f.spec.Homepage }
func (f *Formula) Version() Version { return f.spec.Version }
func (f *Formula) Source() Source   { return f.spec.Source }
func (f *Formula) Naming() Naming   { return f.spec.Naming }
func (f *Formula) IsHead() bool     { return f.spec.Version.IsHead() }
func (f *Formula) String() string   { return f.spec.Name + "@" + string(f.spec.Version) }

// Dependencies returns the declared dependencies.
func (f *Formula) Dependencies() []Dependency { return slices.Clone(f.spec.Dependencies) }

// Options returns the declared build options in declaration order.
func (f *Formula) Options() []Option { return slices.Clone(f.spec.Options) }

// Patches returns every declared patch in declaration order, applicable or not.
func (f *Formula) Patches() []Patch { return slices.Clone(f.spec.Patches) }

// Install returns the install procedure.
func (f *Formula) Install() Install {
	in := f.spec.Install
	in.Args = slices.Clone(in.Args)
	if in.Secondary != nil {
		sec := *in.Secondary
		in.Secondary = &sec
	}
	return in
}

func clone(spec Spec) Spec {
	spec.Dependencies = slices.Clone(spec.Dependencies)
	spec.Options = slices.Clone(spec.Options)
	spec.Patches = slices.Clone(spec.Patches)
	spec.Install.Args = slices.Clone(spec.Install.Args)
	if spec.Install.Secondary != nil {
		sec := *spec.Install.Secondary
		spec.Install.Secondary = &sec
	}
	return spec
}

func validate(spec *Spec) error {
	if spec.Name == "" {
		return fmt.Errorf("missing name")
	}
	if spec.Version == "" {
		return fmt.Errorf("missing version")
	}
	// Digests are compared against lower-case hex.
	spec.Source.SHA256 = strings.ToLower(spec.Source.SHA256)
	if err := validateSource(spec.Version, spec.Source); err != nil {
		return err
	}
	for i, d := range spec.Dependencies {
		if d.Name == "" {
			return fmt.Errorf("dependency %d: missing name", i)
		}
		switch d.Kind {
		case "":
			spec.Dependencies[i].Kind = RunDep
		case BuildDep, RunDep:
		default:
			return fmt.Errorf("dependency %s: unknown kind %q", d.Name, d.Kind)
		}
	}
	for i, o := range spec.Options {
		if o.Name == "" || o.Flag == "" {
			return fmt.Errorf("option %d: missing name or flag", i)
		}
		rule, err := ParseNamingRule(string(o.Rule))
		if err != nil {
			return fmt.Errorf("option %s: %w", o.Name, err)
		}
		spec.Options[i].Rule = rule
	}
	for i, p := range spec.Patches {
		if p.URL == "" {
			return fmt.Errorf("patch %d: missing url", i)
		}
		if !isSHA256(p.SHA256) {
			return fmt.Errorf("patch %s: sha256 %q is not a hex sha256 digest", p.URL, p.SHA256)
		}
		spec.Patches[i].SHA256 = strings.ToLower(p.SHA256)
		if p.Strip < 0 {
			return fmt.Errorf("patch %s: negative strip level", p.URL)
		}
	}
	return validateInstall(&spec.Install)
}

func validateSource(v Version, s Source) error {
	switch {
	case s.IsArchive() && s.IsRepo():
		return fmt.Errorf("source has both an archive url and a repository")
	case s.IsArchive():
		if v.IsHead() {
			return fmt.Errorf("head version cannot be pinned to archive %s", s.URL)
		}
		if s.Revision != "" || s.Tag != "" {
			return fmt.Errorf("revision %s given without a repository", s.Ref())
		}
		if !isSHA256(s.SHA256) {
			return fmt.Errorf("archive %s: sha256 %q is not a hex sha256 digest", s.URL, s.SHA256)
		}
	case s.IsRepo():
		if s.SHA256 != "" {
			return fmt.Errorf("checksum given for repository source %s", s.Repo)
		}
		if s.Revision != "" && !isHex(s.Revision) {
			return fmt.Errorf("revision %q is not a commit hash", s.Revision)
		}
		if !s.Pinned() && !v.IsHead() {
			return fmt.Errorf("release %s cloned from %s without a pinned revision", v, s.Repo)
		}
	default:
		if s.Pinned() {
			return fmt.Errorf("revision %s given without a repository", s.Ref())
		}
		if s.SHA256 != "" {
			return fmt.Errorf("checksum given without an archive url")
		}
		return fmt.Errorf("missing source")
	}
	return nil
}

func validateInstall(in *Install) error {
	if in.Tool == "" {
		in.Tool = "cmake"
	}
	if in.BuildDir == "" {
		in.BuildDir = "build"
	}
	if err := module.CheckFilePath(in.BuildDir); err != nil {
		return fmt.Errorf("build dir: %w", err)
	}
	sec := in.Secondary
	if sec == nil {
		return nil
	}
	if sec.Dir == "" {
		return fmt.Errorf("secondary component: missing dir")
	}
	if err := module.CheckFilePath(sec.Dir); err != nil {
		return fmt.Errorf("secondary component: %w", err)
	}
	switch sec.Root {
	case "":
		sec.Root = RootBuild
	case RootBuild, RootSource:
	default:
		return fmt.Errorf("secondary component: unknown root %q", sec.Root)
	}
	return nil
}
