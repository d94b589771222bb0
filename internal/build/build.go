// Package build drives a formula install through its stages.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goplus/llbrew/formula"
	"github.com/goplus/llbrew/internal/deps"
	"github.com/goplus/llbrew/internal/errors"
	"github.com/goplus/llbrew/internal/logging"
	"github.com/goplus/llbrew/internal/options"
	"github.com/goplus/llbrew/internal/patch"
	"github.com/goplus/llbrew/internal/run"
	"github.com/goplus/llbrew/pkgs/buildsys"
)

// Stage is a step of the install state machine.
type Stage int

const (
	Init Stage = iota
	PrepareDirectory
	ApplyPatches
	Configure
	Build
	Install
	InstallSecondaryComponent
	Done
)

var stageNames = [...]string{
	Init:                      "Init",
	PrepareDirectory:          "PrepareDirectory",
	ApplyPatches:              "ApplyPatches",
	Configure:                 "Configure",
	Build:                     "Build",
	Install:                   "Install",
	InstallSecondaryComponent: "InstallSecondaryComponent",
	Done:                      "Done",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Plan is everything needed to install one formula version. It is not
// modified by Execute.
type Plan struct {
	Formula   *formula.Formula
	RunID     string // generated by Execute when empty
	SourceDir string
	BuildDir  string
	Prefix    string
	BuildType string

	Options   []string        // resolved option flags
	Patches   []formula.Patch // selected patches
	Overrides []string        // platform definitions

	// DepRoots are install roots of dependencies exposed to the build tool.
	DepRoots []string
}

// NewPlan resolves options and patches of f for a source tree at
// sourceDir installed into prefix.
func NewPlan(f *formula.Formula, sourceDir, prefix string, overrides []string) Plan {
	return Plan{
		Formula:   f,
		SourceDir: sourceDir,
		BuildDir:  filepath.Join(sourceDir, filepath.FromSlash(f.Install().BuildDir)),
		Prefix:    prefix,
		BuildType: f.Install().BuildType,
		Options:   options.Resolve(f),
		Patches:   patch.Select(f),
		Overrides: overrides,
	}
}

// SecondaryDir returns the directory the secondary component is installed
// from, or "" when the formula declares none.
func (p Plan) SecondaryDir() string {
	sec := p.Formula.Install().Secondary
	if sec == nil {
		return ""
	}
	root := p.BuildDir
	if sec.Root == formula.RootSource {
		root = p.SourceDir
	}
	return filepath.Join(root, filepath.FromSlash(sec.Dir))
}

// Step is one external command run by the executor.
type Step struct {
	Stage      Stage    `json:"-"`
	StageName  string   `json:"stage"`
	Dir        string   `json:"dir"`
	Argv       []string `json:"argv"`
	ExitCode   int      `json:"exit_code"`
	Diagnostic string   `json:"-"`
}

// Result is the outcome of Execute. Stage is Done on success, otherwise the
// stage that failed.
type Result struct {
	RunID    string
	Stage    Stage
	Failed   bool
	Err      error
	Steps    []Step
	Started  time.Time
	Finished time.Time
}

// OK reports whether the install reached Done.
func (r *Result) OK() bool {
	return !r.Failed && r.Stage == Done
}

// Executor runs plans. Secondary is only needed by formulas that declare a
// secondary component and Patches only by plans with patches.
type Executor struct {
	Tool      buildsys.BuildTool
	Secondary buildsys.SecondaryInstaller
	Patches   *patch.Applier
	Deps      deps.Provisioner
}

// Execute runs the stages of plan in order and stops at the first failure.
// Nothing is retried or rolled back.
func (e *Executor) Execute(ctx context.Context, plan Plan) *Result {
	if plan.RunID == "" {
		plan.RunID = uuid.NewString()
	}
	x := &execution{
		Executor: e,
		plan:     plan,
		res: &Result{
			RunID:   plan.RunID,
			Started: time.Now(),
		},
	}
	x.logger = logging.GetLogger("build").With().
		Str("formula", plan.Formula.String()).
		Str("run", x.res.RunID).
		Logger()

	stages := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{Init, x.init},
		{PrepareDirectory, x.prepareDirectory},
		{ApplyPatches, x.applyPatches},
		{Configure, x.configure},
		{Build, x.build},
		{Install, x.install},
		{InstallSecondaryComponent, x.installSecondary},
	}
	for _, s := range stages {
		x.res.Stage = s.stage
		x.logger.Info().Str("stage", s.stage.String()).Msg("enter")
		if err := ctx.Err(); err != nil {
			return x.fail(err)
		}
		if err := s.fn(ctx); err != nil {
			return x.fail(err)
		}
	}
	x.res.Stage = Done
	x.res.Finished = time.Now()
	x.logger.Info().Dur("duration", x.res.Finished.Sub(x.res.Started)).Msg("done")
	return x.res
}

type execution struct {
	*Executor
	plan   Plan
	res    *Result
	logger zerolog.Logger
}

func (x *execution) fail(err error) *Result {
	stage := x.res.Stage.String()
	if e, ok := errors.As(err); ok {
		if e.Stage == "" {
			e.WithStage(stage)
		}
	} else {
		err = errors.Wrap(err, errors.ErrUnknown, "aborted").WithStage(stage)
	}
	x.res.Failed = true
	x.res.Err = err
	x.res.Finished = time.Now()
	x.logger.Error().Str("stage", stage).Err(err).Msg("failed")
	return x.res
}

func (x *execution) record(stage Stage, out run.Output) {
	x.res.Steps = append(x.res.Steps, Step{
		Stage:      stage,
		StageName:  stage.String(),
		Dir:        out.Dir,
		Argv:       out.Argv,
		ExitCode:   out.ExitCode,
		Diagnostic: out.Diagnostic,
	})
}

// runTool records out and turns a failed command into a coded error.
func (x *execution) runTool(stage Stage, code errors.ErrorCode, out run.Output, err error) error {
	x.record(stage, out)
	if err != nil {
		return errors.Wrapf(err, code, "%s failed", stage).
			WithStage(stage.String()).
			WithDiagnostic(out.Diagnostic)
	}
	return nil
}

func (x *execution) init(ctx context.Context) error {
	p := x.plan
	switch {
	case p.Formula == nil:
		return errors.New(errors.ErrMalformedFormula, "plan has no formula")
	case p.SourceDir == "" || p.BuildDir == "" || p.Prefix == "":
		return errors.New(errors.ErrMalformedFormula, "plan needs source, build and prefix directories")
	case x.Tool == nil:
		return errors.New(errors.ErrMalformedFormula, "no build tool")
	case p.Formula.Install().Secondary != nil && x.Secondary == nil:
		return errors.Newf(errors.ErrMalformedFormula, "no installer for secondary component %s",
			p.Formula.Install().Secondary.Installer)
	case len(p.Patches) > 0 && x.Patches == nil:
		return errors.New(errors.ErrMalformedFormula, "plan has patches but no patch applier")
	}
	if x.Deps != nil {
		if err := x.Deps.Check(ctx, p.Formula.Dependencies()); err != nil {
			return err
		}
	}
	x.Tool.Use(p.DepRoots...)
	return nil
}

func (x *execution) prepareDirectory(context.Context) error {
	dir := x.plan.BuildDir
	entries, err := os.ReadDir(dir)
	switch {
	case err == nil && len(entries) > 0:
		return errors.Newf(errors.ErrDirectoryConflict, "build directory %s is not empty", dir).
			WithDetail("dir", dir)
	case err != nil && !os.IsNotExist(err):
		return errors.Wrapf(err, errors.ErrDirectoryConflict, "build directory %s", dir)
	}
	return os.MkdirAll(dir, 0o755)
}

func (x *execution) applyPatches(ctx context.Context) error {
	if len(x.plan.Patches) == 0 {
		return nil
	}
	fetched, err := x.Patches.Fetch(ctx, x.plan.Patches)
	if err != nil {
		return err
	}
	outs, err := x.Patches.Apply(ctx, x.plan.SourceDir, fetched)
	for _, out := range outs {
		x.record(ApplyPatches, out)
	}
	return err
}

// Flags returns the configure flags for plan in the order they are passed:
// standard flags, platform overrides, options and fixed formula arguments.
func (e *Executor) Flags(plan Plan) []string {
	flags := e.Tool.StdFlags(plan.Prefix, plan.BuildType)
	flags = append(flags, plan.Overrides...)
	flags = append(flags, plan.Options...)
	return append(flags, plan.Formula.Install().Args...)
}

func (x *execution) configure(ctx context.Context) error {
	out, err := x.Tool.Configure(ctx, x.Flags(x.plan), x.plan.SourceDir, x.plan.BuildDir)
	return x.runTool(Configure, errors.ErrConfigure, out, err)
}

func (x *execution) build(ctx context.Context) error {
	out, err := x.Tool.Build(ctx, x.plan.BuildDir)
	return x.runTool(Build, errors.ErrBuild, out, err)
}

func (x *execution) install(ctx context.Context) error {
	out, err := x.Tool.Install(ctx, x.plan.BuildDir)
	return x.runTool(Install, errors.ErrInstall, out, err)
}

func (x *execution) installSecondary(ctx context.Context) error {
	dir := x.plan.SecondaryDir()
	if dir == "" {
		return nil
	}
	out, err := x.Secondary.Install(ctx, dir, x.plan.Prefix)
	return x.runTool(InstallSecondaryComponent, errors.ErrSecondaryInstall, out, err)
}
