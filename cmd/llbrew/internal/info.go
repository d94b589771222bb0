package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/llbrew/formula"
	"github.com/goplus/llbrew/internal/build"
	"github.com/goplus/llbrew/internal/deps"
	"github.com/goplus/llbrew/internal/options"
	"github.com/goplus/llbrew/internal/platform"
	"github.com/goplus/llbrew/internal/ui"
	"github.com/goplus/llbrew/internal/vcs"
)

var infoCheckTags bool

var infoCmd = &cobra.Command{
	Use:   "info name[@version]",
	Short: "Show how a formula version would be built",
	Long: `Info prints the resolved configure flags, the patches selected for the
version, the overrides of this platform and the state of the dependencies.
With --check-tags the release tags of every version are looked up upstream.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoCheckTags, "check-tags", false, "Verify release tags exist in the upstream repository")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	name, version := parseModuleArg(args[0])
	w, err := loadWorkspace()
	if err != nil {
		return err
	}
	p := ui.New(cmd.OutOrStdout())
	if err := w.info(name, version, p); err != nil {
		return err
	}
	if infoCheckTags {
		git := vcs.NewGitVCS(vcs.WithGitPath(w.cfg.Tools.Git))
		return w.checkTags(cmd.Context(), git, name, p)
	}
	return nil
}

func (w *workspace) info(name, version string, p *ui.Printer) error {
	f, err := w.store.Select(name, version)
	if err != nil {
		return err
	}
	tool, err := w.buildTool(f, w.runner(nil))
	if err != nil {
		return err
	}
	ver := f.Version().String()
	keg := w.layout.Keg(f.Name(), ver)
	plat := platform.Current()
	plan := build.NewPlan(f, "", keg, platform.Adapter{LibDir: filepath.Join(keg, "lib")}.OverridesFor(plat))
	if w.cfg.Build.Type != "" {
		plan.BuildType = w.cfg.Build.Type
	}

	p.Heading("%s", f)
	if f.Desc() != "" {
		p.Info("%s", f.Desc())
	}
	if f.Homepage() != "" {
		p.Info("%s", f.Homepage())
	}
	p.Info("source: %s", f.Source())
	if r, err := build.ReadReceipt(keg); err == nil && r.Matches(f) {
		p.Success("installed in %s", keg)
	} else {
		p.Info("not installed")
	}

	p.Heading("Dependencies")
	checker := &deps.Checker{OptDir: w.layout.OptDir(), Aliases: deps.DefaultAliases}
	var depRows [][]string
	for _, d := range f.Dependencies() {
		where, ok := checker.Resolve(d)
		if !ok {
			where = "missing"
		}
		depRows = append(depRows, []string{d.Name, string(d.Kind), where})
	}
	if err := p.Table([]string{"Name", "Kind", "Found"}, depRows); err != nil {
		return err
	}

	p.Heading("Options")
	var optRows [][]string
	for _, row := range options.Table(f) {
		optRows = append(optRows, []string{row.Name, row.Literal(), yesNo(row.Prefixed)})
	}
	if err := p.Table([]string{"Option", "Flag", "Prefixed"}, optRows); err != nil {
		return err
	}

	p.Heading("Patches")
	if len(plan.Patches) == 0 {
		p.Info("none")
	}
	for _, patch := range plan.Patches {
		p.Info("%s (%s)", patch.URL, patch.Applies)
	}

	p.Heading("Overrides for %s", plat)
	if len(plan.Overrides) == 0 {
		p.Info("none")
	}
	for _, o := range plan.Overrides {
		p.Info("%s", o)
	}

	executor := &build.Executor{Tool: tool}
	p.Heading("Configure flags (%s)", tool.Name())
	p.Info("%s", strings.Join(executor.Flags(plan), " "))
	return nil
}

// checkTags looks up the tags release formulas of name are pinned to in
// their upstream repositories.
func (w *workspace) checkTags(ctx context.Context, v vcs.VCS, name string, p *ui.Printer) error {
	all, err := w.store.Versions(name)
	if err != nil {
		return err
	}
	upstream := make(map[string][]string)
	var rows [][]string
	var missing []string
	for _, f := range all {
		src := f.Source()
		if !src.IsRepo() || src.Tag == "" {
			continue
		}
		tags, ok := upstream[src.Repo]
		if !ok {
			if tags, err = v.Tags(ctx, src.Repo); err != nil {
				return fmt.Errorf("listing tags of %s: %w", src.Repo, err)
			}
			upstream[src.Repo] = tags
		}
		found := slices.Contains(tags, src.Tag)
		if !found {
			missing = append(missing, taggedVersion(f))
		}
		rows = append(rows, []string{f.Version().String(), src.Tag, yesNo(found)})
	}
	p.Heading("Release tags")
	if err := p.Table([]string{"Version", "Tag", "Upstream"}, rows); err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("tags missing upstream: %s", strings.Join(missing, ", "))
	}
	return nil
}

func taggedVersion(f *formula.Formula) string {
	return f.Version().String() + " (" + f.Source().Tag + ")"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
