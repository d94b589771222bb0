// Package autotools drives configure/make builds.
package autotools

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/llbrew/internal/logging"
	"github.com/goplus/llbrew/internal/run"
	"github.com/goplus/llbrew/pkgs/buildsys"
)

// AutoTools runs a configure script and make through a run.Runner.
type AutoTools struct {
	make   string
	runner run.Runner
	env    buildsys.Env
}

var _ buildsys.BuildTool = (*AutoTools)(nil)

// New returns an AutoTools using the given make executable ("make" when
// empty).
func New(r run.Runner, makePath string) *AutoTools {
	if makePath == "" {
		makePath = "make"
	}
	return &AutoTools{make: makePath, runner: r, env: buildsys.Env{}}
}

func (a *AutoTools) Name() string { return "autotools" }

// StdFlags returns the prefix definition. Build types have no configure
// equivalent.
func (a *AutoTools) StdFlags(prefix, _ string) []string {
	return []string{"prefix=" + prefix}
}

func (a *AutoTools) Use(roots ...string) {
	a.env = buildsys.NewEnv(roots...)
}

// Configure runs <source>/configure from the build directory.
func (a *AutoTools) Configure(ctx context.Context, flags []string, sourceDir, buildDir string) (run.Output, error) {
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return run.Output{}, err
	}
	return a.run(ctx, buildDir, filepath.Join(sourceDir, "configure"), Args(flags)...)
}

// Build runs make in the build directory.
func (a *AutoTools) Build(ctx context.Context, buildDir string) (run.Output, error) {
	return a.run(ctx, buildDir, a.make)
}

// Install runs make install in the build directory.
func (a *AutoTools) Install(ctx context.Context, buildDir string) (run.Output, error) {
	return a.run(ctx, buildDir, a.make, "install")
}

func (a *AutoTools) run(ctx context.Context, dir, path string, args ...string) (run.Output, error) {
	cmd := &run.Cmd{Dir: dir, Path: path, Args: args}
	if len(a.env) > 0 {
		cmd.Env = a.env
	}
	return a.runner.Run(ctx, cmd)
}

// Args translates FLAG=VALUE definitions into configure arguments:
//
//	WITH_X=ON|OFF    --with-x | --without-x
//	ENABLE_X=ON|OFF  --enable-x | --disable-x
//	key=value        --key=value
//	VAR=value        VAR=value (precious variable)
//
// Flags starting with '-' are kept as is. Typed definitions (NAME:TYPE=V)
// only make sense to CMake and are dropped.
func Args(flags []string) []string {
	logger := logging.GetLogger("autotools")
	args := make([]string, 0, len(flags))
	for _, f := range flags {
		if strings.HasPrefix(f, "-") {
			args = append(args, f)
			continue
		}
		name, typ, value, err := buildsys.SplitDefine(f)
		if err != nil || typ != "" {
			logger.Debug().Str("flag", f).Msg("skipping flag configure does not understand")
			continue
		}
		args = append(args, translate(name, value))
	}
	return args
}

func translate(name, value string) string {
	feature := func(prefix string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, prefix)), "_", "-")
	}
	switch {
	case strings.HasPrefix(name, "WITH_"):
		if isOn(value) {
			return "--with-" + feature("WITH_")
		}
		return "--without-" + feature("WITH_")
	case strings.HasPrefix(name, "ENABLE_"):
		if isOn(value) {
			return "--enable-" + feature("ENABLE_")
		}
		return "--disable-" + feature("ENABLE_")
	case name == strings.ToLower(name):
		return "--" + strings.ReplaceAll(name, "_", "-") + "=" + value
	}
	return name + "=" + value
}

func isOn(v string) bool {
	switch strings.ToUpper(v) {
	case "ON", "1", "YES", "TRUE", "Y":
		return true
	}
	return false
}
