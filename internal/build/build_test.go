package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/llbrew/formula"
	llerrors "github.com/goplus/llbrew/internal/errors"
	"github.com/goplus/llbrew/internal/patch"
	"github.com/goplus/llbrew/pkgs/buildsys/cmake"
)

const fixDiff = "--- a/CMakeLists.txt\n+++ b/CMakeLists.txt\n@@ -1 +1 @@\n-a\n+b\n"
const fixURL = "catalog:magnum-bindings/patches/fix.patch"

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func magnumBindings(t *testing.T, version formula.Version) *formula.Formula {
	t.Helper()
	src := formula.Source{Repo: "https://github.com/mosra/magnum-bindings.git", Tag: "v" + string(version)}
	if version.IsHead() {
		src.Tag = ""
	}
	f, err := formula.New(formula.Spec{
		Name:    "magnum-bindings",
		Version: version,
		Source:  src,
		Dependencies: []formula.Dependency{
			{Name: "cmake", Kind: formula.BuildDep},
			{Name: "magnum"},
		},
		Naming:  formula.Naming{Prefix: "MAGNUM_", Since: "2020.06-1"},
		Options: []formula.Option{{Name: "python", Flag: "WITH_PYTHON", Value: "ON"}},
		Patches: []formula.Patch{{URL: fixURL, SHA256: sum(fixDiff), Applies: formula.Only("2020.06"), Strip: 1}},
		Install: formula.Install{
			BuildType: "Release",
			Secondary: &formula.Secondary{Dir: "src/python", Installer: "setuptools"},
		},
	})
	require.NoError(t, err)
	return f
}

type fixture struct {
	log       calls
	tool      *mockTool
	secondary *mockSecondary
	deps      *mockDeps
	runner    *mockRunner
	exec      *Executor
	plan      Plan
}

func newFixture(t *testing.T, version formula.Version) *fixture {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))

	x := &fixture{}
	x.tool = &mockTool{log: &x.log, fail: map[string]bool{}}
	x.secondary = &mockSecondary{log: &x.log}
	x.deps = &mockDeps{log: &x.log}
	x.runner = &mockRunner{log: &x.log}
	x.exec = &Executor{
		Tool:      x.tool,
		Secondary: x.secondary,
		Deps:      x.deps,
		Patches: &patch.Applier{
			Fetcher:  mockFetcher{fixURL: fixDiff},
			Runner:   x.runner,
			CacheDir: filepath.Join(root, "patches"),
		},
	}
	x.plan = NewPlan(magnumBindings(t, version), src, filepath.Join(root, "prefix"),
		[]string{"CMAKE_INSTALL_NAME_DIR:STRING=/opt/lib"})
	return x
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "Init", Init.String())
	assert.Equal(t, "InstallSecondaryComponent", InstallSecondaryComponent.String())
	assert.Equal(t, "Done", Done.String())
	assert.Equal(t, "Stage(42)", Stage(42).String())
}

func TestNewPlan(t *testing.T) {
	x := newFixture(t, "2020.06")
	assert.Equal(t, filepath.Join(x.plan.SourceDir, "build"), x.plan.BuildDir)
	assert.Equal(t, []string{"WITH_PYTHON=ON"}, x.plan.Options)
	require.Len(t, x.plan.Patches, 1)
	assert.Equal(t, filepath.Join(x.plan.BuildDir, "src", "python"), x.plan.SecondaryDir())

	head := newFixture(t, formula.Head)
	assert.Equal(t, []string{"MAGNUM_WITH_PYTHON=ON"}, head.plan.Options)
	assert.Empty(t, head.plan.Patches)
}

func TestExecuteSuccess(t *testing.T) {
	x := newFixture(t, "2020.06")
	x.plan.DepRoots = []string{"/opt/magnum"}

	res := x.exec.Execute(context.Background(), x.plan)
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, Done, res.Stage)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, calls{
		"deps cmake magnum",
		"patch -f -p1 -i",
		"configure src",
		"build ",
		"install ",
		"secondary python",
	}, x.log)
	assert.Equal(t, []string{"/opt/magnum"}, x.tool.used)
	assert.Equal(t, []string{
		"BUILD_TYPE=Release",
		"PREFIX=" + x.plan.Prefix,
		"CMAKE_INSTALL_NAME_DIR:STRING=/opt/lib",
		"WITH_PYTHON=ON",
	}, x.tool.flags)

	var stages []Stage
	for _, s := range res.Steps {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []Stage{ApplyPatches, Configure, Build, Install, InstallSecondaryComponent}, stages)
	assert.DirExists(t, x.plan.BuildDir)
}

func TestExecuteConfigureFailure(t *testing.T) {
	x := newFixture(t, "2020.06")
	x.tool.fail["configure"] = true

	res := x.exec.Execute(context.Background(), x.plan)
	assert.True(t, res.Failed)
	assert.False(t, res.OK())
	assert.Equal(t, Configure, res.Stage)

	for _, c := range x.log {
		assert.NotContains(t, c, "build")
		assert.NotContains(t, c, "install")
		assert.NotContains(t, c, "secondary")
	}

	require.Error(t, res.Err)
	assert.True(t, llerrors.IsCode(res.Err, llerrors.ErrConfigure))
	e, ok := llerrors.As(res.Err)
	require.True(t, ok)
	assert.Equal(t, "Configure", e.Stage)
	assert.Equal(t, "configure exploded", e.Diagnostic)

	last := res.Steps[len(res.Steps)-1]
	assert.Equal(t, Configure, last.Stage)
	assert.Equal(t, 1, last.ExitCode)
	assert.Equal(t, "configure exploded", last.Diagnostic)
}

func TestExecuteFailFast(t *testing.T) {
	tests := []struct {
		fail  string
		stage Stage
		code  llerrors.ErrorCode
		calls int
	}{
		{"build", Build, llerrors.ErrBuild, 4},
		{"install", Install, llerrors.ErrInstall, 5},
	}
	for _, tt := range tests {
		t.Run(tt.fail, func(t *testing.T) {
			x := newFixture(t, "2020.06")
			x.tool.fail[tt.fail] = true

			res := x.exec.Execute(context.Background(), x.plan)
			assert.Equal(t, tt.stage, res.Stage)
			assert.True(t, llerrors.IsCode(res.Err, tt.code))
			assert.Len(t, x.log, tt.calls)
			assert.Empty(t, x.secondary.dir)
		})
	}
}

func TestExecuteSecondaryFailureKeepsPrimary(t *testing.T) {
	x := newFixture(t, "2019.10")
	x.secondary.fail = true
	marker := filepath.Join(x.plan.Prefix, "lib", "libMagnum.a")
	require.NoError(t, os.MkdirAll(filepath.Dir(marker), 0o755))
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	res := x.exec.Execute(context.Background(), x.plan)
	assert.Equal(t, InstallSecondaryComponent, res.Stage)
	assert.True(t, llerrors.IsCode(res.Err, llerrors.ErrSecondaryInstall))
	e, _ := llerrors.As(res.Err)
	assert.Equal(t, "error: invalid command 'bdist_egg'", e.Diagnostic)
	assert.Equal(t, "install ", x.log[len(x.log)-2])
	assert.FileExists(t, marker)
}

func TestExecuteWithoutSecondary(t *testing.T) {
	x := newFixture(t, "2019.10")
	f, err := formula.New(formula.Spec{
		Name:    "corrade",
		Version: "2019.10",
		Source:  formula.Source{Repo: "https://github.com/mosra/corrade.git", Tag: "v2019.10"},
	})
	require.NoError(t, err)
	plan := NewPlan(f, x.plan.SourceDir, x.plan.Prefix, nil)
	x.exec.Secondary = nil

	res := x.exec.Execute(context.Background(), plan)
	require.NoError(t, res.Err)
	assert.Equal(t, calls{"deps ", "configure src", "build ", "install "}, x.log)
}

func TestExecutePatchIntegrity(t *testing.T) {
	x := newFixture(t, "2020.06")
	x.exec.Patches.Fetcher = mockFetcher{fixURL: fixDiff + "+evil\n"}

	res := x.exec.Execute(context.Background(), x.plan)
	assert.Equal(t, ApplyPatches, res.Stage)
	assert.True(t, llerrors.IsCode(res.Err, llerrors.ErrPatchIntegrity))
	e, _ := llerrors.As(res.Err)
	assert.Equal(t, "ApplyPatches", e.Stage)
	assert.Equal(t, calls{"deps cmake magnum"}, x.log)
	assert.Nil(t, x.tool.flags)
}

func TestExecutePatchApplication(t *testing.T) {
	x := newFixture(t, "2020.06")
	x.runner.fail = true

	res := x.exec.Execute(context.Background(), x.plan)
	assert.Equal(t, ApplyPatches, res.Stage)
	assert.True(t, llerrors.IsCode(res.Err, llerrors.ErrPatchApplication))
	e, _ := llerrors.As(res.Err)
	assert.Equal(t, "Hunk #1 FAILED at 12.", e.Diagnostic)
	assert.Equal(t, fixURL, e.Details["url"])
	assert.Len(t, res.Steps, 1)
	assert.Nil(t, x.tool.flags)
}

func TestExecuteDirectoryConflict(t *testing.T) {
	x := newFixture(t, "2019.10")
	require.NoError(t, os.MkdirAll(x.plan.BuildDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(x.plan.BuildDir, "CMakeCache.txt"), nil, 0o644))

	res := x.exec.Execute(context.Background(), x.plan)
	assert.Equal(t, PrepareDirectory, res.Stage)
	assert.True(t, llerrors.IsCode(res.Err, llerrors.ErrDirectoryConflict))
	assert.Equal(t, calls{"deps cmake magnum"}, x.log)

	// an existing empty directory is fine
	require.NoError(t, os.Remove(filepath.Join(x.plan.BuildDir, "CMakeCache.txt")))
	x.log = nil
	res = x.exec.Execute(context.Background(), x.plan)
	assert.True(t, res.OK())
}

func TestExecuteMissingDependency(t *testing.T) {
	x := newFixture(t, "2019.10")
	x.deps.err = llerrors.New(llerrors.ErrMissingDependency, "missing dependencies: magnum")

	res := x.exec.Execute(context.Background(), x.plan)
	assert.Equal(t, Init, res.Stage)
	assert.True(t, llerrors.IsCode(res.Err, llerrors.ErrMissingDependency))
	assert.NoDirExists(t, x.plan.BuildDir)
}

func TestExecuteInvalidPlan(t *testing.T) {
	x := newFixture(t, "2020.06")
	x.exec.Patches = nil
	res := x.exec.Execute(context.Background(), x.plan)
	assert.Equal(t, Init, res.Stage)
	assert.True(t, llerrors.IsCode(res.Err, llerrors.ErrMalformedFormula))

	x = newFixture(t, "2019.10")
	x.exec.Secondary = nil
	res = x.exec.Execute(context.Background(), x.plan)
	assert.True(t, llerrors.IsCode(res.Err, llerrors.ErrMalformedFormula))
	assert.Empty(t, x.log)
}

func TestExecuteCancelled(t *testing.T) {
	x := newFixture(t, "2019.10")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := x.exec.Execute(ctx, x.plan)
	assert.Equal(t, Init, res.Stage)
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.Empty(t, x.log)
}

func TestExecuteIdempotent(t *testing.T) {
	x := newFixture(t, "2020.06")

	first := x.exec.Execute(context.Background(), x.plan)
	require.True(t, first.OK())
	firstLog := append(calls(nil), x.log...)

	require.NoError(t, os.RemoveAll(x.plan.BuildDir))
	x.log = nil
	second := x.exec.Execute(context.Background(), x.plan)
	require.True(t, second.OK())

	assert.Equal(t, firstLog, x.log)
	assert.Equal(t, first.Steps, second.Steps)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestExecuteUsesPlanRunIDAndBuildType(t *testing.T) {
	x := newFixture(t, "2020.06")
	x.plan.RunID = "run-1"
	x.plan.BuildType = "Debug"

	res := x.exec.Execute(context.Background(), x.plan)
	require.True(t, res.OK())
	assert.Equal(t, "run-1", res.RunID)
	assert.Contains(t, x.tool.flags, "BUILD_TYPE=Debug")
}

func TestExecuteRepeatedKeepsDependencyEnv(t *testing.T) {
	t.Setenv("CMAKE_PREFIX_PATH", "")
	x := newFixture(t, formula.Head)
	rec := &envRunner{}
	x.exec.Tool = cmake.New(rec)
	dep := t.TempDir()
	x.plan.DepRoots = []string{dep}

	for i := 0; i < 2; i++ {
		require.NoError(t, os.RemoveAll(x.plan.BuildDir))
		res := x.exec.Execute(context.Background(), x.plan)
		require.True(t, res.OK(), "run %d: %v", i, res.Err)
	}

	// configure, build and install per run
	require.Len(t, rec.envs, 6)
	assert.Equal(t, dep, rec.envs[0]["CMAKE_PREFIX_PATH"])
	assert.Equal(t, rec.envs[:3], rec.envs[3:])
}
