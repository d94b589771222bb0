// Package cmake drives the cmake configure/build/install workflow.
package cmake

import (
	"context"
	"os"
	"strings"

	"github.com/goplus/llbrew/internal/run"
	"github.com/goplus/llbrew/pkgs/buildsys"
)

// CMake runs cmake through a run.Runner.
type CMake struct {
	path      string
	generator string
	runner    run.Runner
	env       buildsys.Env
}

var _ buildsys.BuildTool = (*CMake)(nil)

// Option configures CMake.
type Option func(*CMake)

// WithPath sets the cmake executable.
func WithPath(path string) Option {
	return func(c *CMake) {
		if path != "" {
			c.path = path
		}
	}
}

// WithGenerator sets the CMake generator (e.g. "Ninja", "Unix Makefiles").
func WithGenerator(name string) Option {
	return func(c *CMake) {
		c.generator = name
	}
}

// New returns a CMake that runs commands with r.
func New(r run.Runner, opts ...Option) *CMake {
	c := &CMake{
		path:   "cmake",
		runner: r,
		env:    buildsys.Env{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CMake) Name() string { return "cmake" }

// StdFlags returns the definitions every package configured by llbrew
// gets. Libraries always land in <prefix>/lib and frameworks are searched
// after plain libraries.
func (c *CMake) StdFlags(prefix, buildType string) []string {
	var flags []string
	if buildType != "" {
		flags = append(flags, "CMAKE_BUILD_TYPE="+buildType)
	}
	return append(flags,
		"CMAKE_INSTALL_PREFIX="+prefix,
		"CMAKE_INSTALL_LIBDIR=lib",
		"CMAKE_FIND_FRAMEWORK=LAST",
		"CMAKE_VERBOSE_MAKEFILE=ON",
	)
}

// Use makes the dependencies installed at roots visible to find_package.
func (c *CMake) Use(roots ...string) {
	c.env = buildsys.NewEnv(roots...)
}

// Configure runs "cmake -S <source> -B <build>". Definitions are passed as
// -D<flag> in the given order; flags starting with '-' are passed verbatim.
func (c *CMake) Configure(ctx context.Context, flags []string, sourceDir, buildDir string) (run.Output, error) {
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return run.Output{}, err
	}
	args := []string{"-S", sourceDir, "-B", buildDir}
	if c.generator != "" {
		args = append(args, "-G", c.generator)
	}
	args = append(args, "-Wno-dev")
	for _, f := range flags {
		if strings.HasPrefix(f, "-") {
			args = append(args, f)
			continue
		}
		args = append(args, "-D"+f)
	}
	return c.run(ctx, buildDir, args...)
}

// Build runs "cmake --build <build>".
func (c *CMake) Build(ctx context.Context, buildDir string) (run.Output, error) {
	return c.run(ctx, buildDir, "--build", buildDir)
}

// Install runs "cmake --build <build> --target install".
func (c *CMake) Install(ctx context.Context, buildDir string) (run.Output, error) {
	return c.run(ctx, buildDir, "--build", buildDir, "--target", "install")
}

func (c *CMake) run(ctx context.Context, dir string, args ...string) (run.Output, error) {
	cmd := &run.Cmd{Dir: dir, Path: c.path, Args: args}
	if len(c.env) > 0 {
		cmd.Env = c.env
	}
	return c.runner.Run(ctx, cmd)
}
