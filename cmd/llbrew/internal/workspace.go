package internal

import (
	"io"

	"github.com/goplus/llbrew/formula"
	"github.com/goplus/llbrew/formulas"
	"github.com/goplus/llbrew/internal/config"
	"github.com/goplus/llbrew/internal/env"
	"github.com/goplus/llbrew/internal/errors"
	"github.com/goplus/llbrew/internal/formula/repo"
	"github.com/goplus/llbrew/internal/run"
	"github.com/goplus/llbrew/internal/vcs"
	"github.com/goplus/llbrew/pkgs/buildsys"
	"github.com/goplus/llbrew/pkgs/buildsys/autotools"
	"github.com/goplus/llbrew/pkgs/buildsys/cmake"
	"github.com/goplus/llbrew/pkgs/buildsys/python"
)

// builtinFormulas names the embedded catalogue layer.
const builtinFormulas = "builtin"

// workspace is what the commands share: settings, on-disk layout and the
// formula store.
type workspace struct {
	cfg    *config.Config
	layout env.Layout
	store  *repo.Store
}

// newWorkspace searches user formula directories first, then the synced
// formula repository, then the embedded catalogue.
func newWorkspace(cfg *config.Config) *workspace {
	layout := env.Layout{Prefix: cfg.Prefix, Cache: cfg.CacheDir}
	opts := []repo.Option{repo.WithDirs(cfg.Formula.Dirs...)}
	if cfg.Formula.Remote != "" {
		git := vcs.NewGitVCS(vcs.WithGitPath(cfg.Tools.Git), vcs.WithDepth(1))
		opts = append(opts, repo.WithRemote(cfg.Formula.Remote, layout.FormulaDir(), git))
	}
	opts = append(opts, repo.WithFS(builtinFormulas, formulas.FS))
	return &workspace{
		cfg:    cfg,
		layout: layout,
		store:  repo.New(opts...),
	}
}

// runner returns the command runner. Tool output is copied to stream
// when it is not nil.
func (w *workspace) runner(stream io.Writer) run.Runner {
	return &run.Exec{Stream: stream}
}

// buildTool returns the build tool f asks for.
func (w *workspace) buildTool(f *formula.Formula, r run.Runner) (buildsys.BuildTool, error) {
	switch tool := f.Install().Tool; tool {
	case "cmake":
		return cmake.New(r,
			cmake.WithPath(w.cfg.Tools.CMake),
			cmake.WithGenerator(w.cfg.Build.Generator),
		), nil
	case "autotools":
		return autotools.New(r, w.cfg.Tools.Make), nil
	default:
		return nil, errors.Newf(errors.ErrMalformedFormula, "%s: unknown build tool %q", f, tool)
	}
}

// secondaryInstaller returns the installer of f's secondary component, or
// nil when f has none. The configured installer wins over the formula's.
func (w *workspace) secondaryInstaller(f *formula.Formula, r run.Runner) (buildsys.SecondaryInstaller, error) {
	sec := f.Install().Secondary
	if sec == nil {
		return nil, nil
	}
	mode := sec.Installer
	if w.cfg.Secondary.Installer != "" {
		mode = w.cfg.Secondary.Installer
	}
	inst, err := python.New(r, w.cfg.Tools.Python, mode)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMalformedFormula, f.String())
	}
	return inst, nil
}
