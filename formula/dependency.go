package formula

import "fmt"

// DepKind tells when a dependency is needed.
type DepKind string

const (
	// BuildDep is needed only while building.
	BuildDep DepKind = "build"
	// RunDep is needed at build time and by the installed artifacts.
	RunDep DepKind = "run"
)

// ParseDepKind parses a dependency kind. The empty string means RunDep.
func ParseDepKind(s string) (DepKind, error) {
	switch s {
	case "", "run", "runtime":
		return RunDep, nil
	case "build":
		return BuildDep, nil
	}
	return "", fmt.Errorf("unknown dependency kind %q", s)
}

// Dependency is a named package the formula needs.
type Dependency struct {
	Name string
	Kind DepKind
}

func (d Dependency) String() string {
	if d.Kind == BuildDep {
		return d.Name + " (build)"
	}
	return d.Name
}
