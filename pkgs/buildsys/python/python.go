// Package python installs Python packages bundled inside a source tree.
package python

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/goplus/llbrew/internal/run"
	"github.com/goplus/llbrew/pkgs/buildsys"
)

// Installer modes.
const (
	Setuptools = "setuptools"
	Pip        = "pip"
)

// Installer runs setup.py or pip in a package directory.
type Installer struct {
	python string
	mode   string
	runner run.Runner
}

var _ buildsys.SecondaryInstaller = (*Installer)(nil)

// New returns an Installer. python defaults to "python3" and mode to
// Setuptools.
func New(r run.Runner, python, mode string) (*Installer, error) {
	if python == "" {
		python = "python3"
	}
	switch mode {
	case "":
		mode = Setuptools
	case Setuptools, Pip:
	default:
		return nil, fmt.Errorf("python: unknown installer %q", mode)
	}
	return &Installer{python: python, mode: mode, runner: r}, nil
}

// Install installs the package in subDir under prefix.
func (p *Installer) Install(ctx context.Context, subDir, prefix string) (run.Output, error) {
	return p.runner.Run(ctx, &run.Cmd{
		Dir:  subDir,
		Path: p.python,
		Args: p.Args(prefix),
	})
}

// Args returns the interpreter arguments for installing into prefix.
func (p *Installer) Args(prefix string) []string {
	if p.mode == Pip {
		return []string{
			"-m", "pip", "install",
			"--verbose",
			"--no-deps",
			"--no-build-isolation",
			"--ignore-installed",
			"--prefix=" + prefix,
			".",
		}
	}
	return []string{
		"setup.py",
		"--no-user-cfg",
		"install",
		"--prefix=" + prefix,
		"--install-scripts=" + filepath.Join(prefix, "bin"),
		"--single-version-externally-managed",
		"--record=installed.txt",
	}
}
