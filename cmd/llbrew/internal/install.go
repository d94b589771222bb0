package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/goplus/llbrew/internal/build"
	"github.com/goplus/llbrew/internal/deps"
	"github.com/goplus/llbrew/internal/env"
	"github.com/goplus/llbrew/internal/logging"
	"github.com/goplus/llbrew/internal/patch"
	"github.com/goplus/llbrew/internal/platform"
	"github.com/goplus/llbrew/internal/source"
	"github.com/goplus/llbrew/internal/ui"
	"github.com/goplus/llbrew/internal/vcs"
)

type installOptions struct {
	force      bool
	stream     bool
	keepWork   bool
	ignoreDeps bool
}

var installOpts installOptions

var installCmd = &cobra.Command{
	Use:   "install name[@version]",
	Short: "Build and install a formula into the prefix",
	Long: `Install fetches the source of a formula, applies its patches, then
configures, builds and installs it into <prefix>/Cellar/<name>/<version> and
links <prefix>/opt/<name> to it. Without a version the newest release is
installed; "head" selects the development formula.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVarP(&installOpts.force, "force", "f", false, "Reinstall even if the keg is already installed")
	installCmd.Flags().BoolVar(&installOpts.stream, "stream", false, "Stream build tool output to stderr")
	installCmd.Flags().BoolVar(&installOpts.keepWork, "keep-work", false, "Keep the build tree after a successful install")
	installCmd.Flags().BoolVar(&installOpts.ignoreDeps, "ignore-dependencies", false, "Do not check that dependencies are present")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	name, version := parseModuleArg(args[0])
	w, err := loadWorkspace()
	if err != nil {
		return err
	}
	return w.install(cmd.Context(), name, version, installOpts, ui.New(cmd.OutOrStdout()), cmd.ErrOrStderr())
}

// parseModuleArg parses a formula argument in the form "name@version" or "name".
func parseModuleArg(arg string) (name, version string) {
	for i := len(arg) - 1; i >= 0; i-- {
		if arg[i] == '@' {
			return arg[:i], arg[i+1:]
		}
	}
	return arg, ""
}

func (w *workspace) install(ctx context.Context, name, version string, opts installOptions, p *ui.Printer, stream io.Writer) error {
	logger := logging.GetLogger("install")
	f, err := w.store.Select(name, version)
	if err != nil {
		return err
	}
	ver := f.Version().String()
	keg := w.layout.Keg(f.Name(), ver)

	unlock, err := env.Lock(ctx, keg)
	if err != nil {
		return err
	}
	defer unlock()

	if r, err := build.ReadReceipt(keg); err == nil && r.Matches(f) && !opts.force {
		p.Info("%s is already installed in %s", f, keg)
		return nil
	}
	// Anything left in the keg is from a failed or forced install.
	if err := os.RemoveAll(keg); err != nil {
		return fmt.Errorf("removing keg %s: %w", keg, err)
	}

	runID := uuid.NewString()
	work := w.layout.WorkDir(f.Name(), ver, runID[:8])
	srcDir := filepath.Join(work, "src")
	var out io.Writer
	if opts.stream {
		out = stream
	}
	r := w.runner(out)

	p.Heading("Fetching %s", f.Source())
	fetcher := &source.Fetcher{
		VCS:      vcs.NewGitVCS(vcs.WithGitPath(w.cfg.Tools.Git), vcs.WithTags()),
		CacheDir: w.layout.DownloadsDir(),
	}
	rev, err := fetcher.Fetch(ctx, f.Source(), srcDir)
	if err != nil {
		return err
	}

	tool, err := w.buildTool(f, r)
	if err != nil {
		return err
	}
	secondary, err := w.secondaryInstaller(f, r)
	if err != nil {
		return err
	}

	plat := platform.Current()
	overrides := platform.Adapter{LibDir: filepath.Join(keg, "lib")}.OverridesFor(plat)
	plan := build.NewPlan(f, srcDir, keg, overrides)
	plan.RunID = runID
	if w.cfg.Build.Type != "" {
		plan.BuildType = w.cfg.Build.Type
	}
	checker := &deps.Checker{OptDir: w.layout.OptDir(), Aliases: deps.DefaultAliases}
	plan.DepRoots = checker.Kegs(f.Dependencies())

	executor := &build.Executor{
		Tool:      tool,
		Secondary: secondary,
		Deps:      checker,
		Patches: &patch.Applier{
			Fetcher:   patch.NewSchemes(nil, w.store),
			Runner:    r,
			PatchPath: w.cfg.Tools.Patch,
			CacheDir:  w.layout.PatchesDir(),
		},
	}
	if opts.ignoreDeps {
		executor.Deps = nil
	}

	p.Heading("Installing %s", f)
	res := executor.Execute(ctx, plan)
	if !res.OK() {
		p.Info("build tree kept in %s", work)
		return res.Err
	}

	receipt := build.NewReceipt(plan, res, plat.String())
	receipt.Revision = rev
	if err := build.WriteReceipt(keg, receipt); err != nil {
		return fmt.Errorf("writing receipt: %w", err)
	}
	if err := w.layout.Link(f.Name(), ver); err != nil {
		return fmt.Errorf("linking %s: %w", f, err)
	}
	if !opts.keepWork {
		if err := os.RemoveAll(work); err != nil {
			logger.Warn().Err(err).Str("dir", work).Msg("failed to remove build tree")
		}
	}
	p.Success("%s installed in %s (%s)", f, keg, res.Finished.Sub(res.Started).Round(time.Second))
	return nil
}
