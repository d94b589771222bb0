package build

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"github.com/goplus/llbrew/formula"
	"github.com/goplus/llbrew/internal/run"
)

// calls is a shared log of every collaborator call, in order.
type calls []string

func (c *calls) add(format string, args ...any) {
	*c = append(*c, fmt.Sprintf(format, args...))
}

// mockTool implements buildsys.BuildTool. A stage listed in fail exits 1
// with diagnostic "<stage> exploded".
type mockTool struct {
	log   *calls
	fail  map[string]bool
	used  []string
	flags []string
}

func (m *mockTool) Name() string { return "mock" }

func (m *mockTool) StdFlags(prefix, buildType string) []string {
	return []string{"BUILD_TYPE=" + buildType, "PREFIX=" + prefix}
}

func (m *mockTool) Use(roots ...string) { m.used = roots }

func (m *mockTool) step(name, dir string, args ...string) (run.Output, error) {
	m.log.add("%s %s", name, strings.Join(args, " "))
	out := run.Output{Dir: dir, Argv: append([]string{"mock", name}, args...)}
	if m.fail[name] {
		out.ExitCode = 1
		out.Diagnostic = name + " exploded"
		return out, errors.New("exit status 1")
	}
	return out, nil
}

func (m *mockTool) Configure(_ context.Context, flags []string, sourceDir, buildDir string) (run.Output, error) {
	m.flags = flags
	return m.step("configure", buildDir, filepath.Base(sourceDir))
}

func (m *mockTool) Build(_ context.Context, buildDir string) (run.Output, error) {
	return m.step("build", buildDir)
}

func (m *mockTool) Install(_ context.Context, buildDir string) (run.Output, error) {
	return m.step("install", buildDir)
}

// mockSecondary implements buildsys.SecondaryInstaller.
type mockSecondary struct {
	log  *calls
	fail bool
	dir  string
}

func (m *mockSecondary) Install(_ context.Context, subDir, prefix string) (run.Output, error) {
	m.dir = subDir
	m.log.add("secondary %s", filepath.Base(subDir))
	out := run.Output{Dir: subDir, Argv: []string{"python3", "setup.py", "install", "--prefix=" + prefix}}
	if m.fail {
		out.ExitCode = 1
		out.Diagnostic = "error: invalid command 'bdist_egg'"
		return out, errors.New("exit status 1")
	}
	return out, nil
}

// mockDeps implements deps.Provisioner.
type mockDeps struct {
	log *calls
	err error
}

func (m *mockDeps) Check(_ context.Context, deps []formula.Dependency) error {
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	m.log.add("deps %s", strings.Join(names, " "))
	return m.err
}

// mockFetcher implements patch.Fetcher.
type mockFetcher map[string]string

func (m mockFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	s, ok := m[url]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return []byte(s), nil
}

// mockRunner implements run.Runner for the patch tool.
type mockRunner struct {
	log  *calls
	fail bool
}

func (m *mockRunner) Run(_ context.Context, c *run.Cmd) (run.Output, error) {
	m.log.add("%s %s", c.Path, strings.Join(c.Args[:len(c.Args)-1], " "))
	out := run.Output{Dir: c.Dir, Argv: c.Argv()}
	if m.fail {
		out.ExitCode = 1
		out.Diagnostic = "Hunk #1 FAILED at 12."
		return out, errors.New("exit status 1")
	}
	return out, nil
}

// envRunner implements run.Runner and keeps the environment of each command.
type envRunner struct {
	envs []map[string]string
}

func (r *envRunner) Run(_ context.Context, c *run.Cmd) (run.Output, error) {
	r.envs = append(r.envs, maps.Clone(c.Env))
	return run.Output{Dir: c.Dir, Argv: c.Argv()}, nil
}
