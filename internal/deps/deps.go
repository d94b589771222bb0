// Package deps asserts that a formula's dependencies are provisioned.
// Installing missing dependencies is left to the package manager.
package deps

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/goplus/llbrew/formula"
	"github.com/goplus/llbrew/internal/errors"
	"github.com/goplus/llbrew/internal/logging"
)

// Provisioner checks that dependencies are present.
type Provisioner interface {
	Check(ctx context.Context, deps []formula.Dependency) error
}

// Checker finds a dependency either as a keg linked under OptDir or as an
// executable on PATH.
type Checker struct {
	OptDir string

	// Aliases maps a dependency name to the executable that provides it,
	// e.g. "python" to "python3".
	Aliases map[string]string

	// LookPath defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// DefaultAliases covers dependencies whose executable is named differently.
var DefaultAliases = map[string]string{
	"python": "python3",
}

// Resolve returns where dep is provided from: its opt directory, or the
// path of its executable.
func (c *Checker) Resolve(dep formula.Dependency) (string, bool) {
	if c.OptDir != "" {
		dir := filepath.Join(c.OptDir, dep.Name)
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir, true
		}
	}
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	name := dep.Name
	if alias, ok := c.Aliases[name]; ok {
		name = alias
	}
	if p, err := lookPath(name); err == nil {
		return p, true
	}
	return "", false
}

// Check implements Provisioner. All missing dependencies are reported
// together.
func (c *Checker) Check(ctx context.Context, deps []formula.Dependency) error {
	logger := logging.GetLogger("deps")
	var missing []string
	for _, d := range deps {
		if err := ctx.Err(); err != nil {
			return err
		}
		where, ok := c.Resolve(d)
		if !ok {
			missing = append(missing, d.String())
			continue
		}
		logger.Debug().Str("dependency", d.Name).Str("kind", string(d.Kind)).Str("at", where).Msg("found")
	}
	if len(missing) > 0 {
		return errors.Newf(errors.ErrMissingDependency, "missing dependencies: %s", strings.Join(missing, ", ")).
			WithDetail("missing", missing)
	}
	return nil
}

// Kegs returns the opt directories of the dependencies linked under
// OptDir, in declaration order. Build tools use them to find headers and
// libraries.
func (c *Checker) Kegs(deps []formula.Dependency) []string {
	if c.OptDir == "" {
		return nil
	}
	var kegs []string
	for _, d := range deps {
		dir := filepath.Join(c.OptDir, d.Name)
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			kegs = append(kegs, dir)
		}
	}
	return kegs
}
