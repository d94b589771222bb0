// Package patch selects, verifies and applies formula patches.
package patch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goplus/llbrew/formula"
	"github.com/goplus/llbrew/internal/errors"
	"github.com/goplus/llbrew/internal/logging"
	"github.com/goplus/llbrew/internal/run"
)

// Select returns the patches of f whose predicate matches f's version, in
// declaration order.
func Select(f *formula.Formula) []formula.Patch {
	var ret []formula.Patch
	v := f.Version()
	for _, p := range f.Patches() {
		if p.Applies.Match(v) {
			ret = append(ret, p)
		}
	}
	return ret
}

// Fetched is a patch whose content has been retrieved and verified.
type Fetched struct {
	formula.Patch
	Data []byte
}

// Applier retrieves patches and applies them with the patch tool.
type Applier struct {
	Fetcher Fetcher
	Runner  run.Runner

	// PatchPath defaults to "patch".
	PatchPath string

	// CacheDir holds verified patch files. It defaults to a directory
	// under os.TempDir.
	CacheDir string
}

// Fetch retrieves every patch and checks its content digest. Nothing is
// returned unless all patches verify.
func (a *Applier) Fetch(ctx context.Context, patches []formula.Patch) ([]Fetched, error) {
	logger := logging.GetLogger("patch")
	ret := make([]Fetched, 0, len(patches))
	for _, p := range patches {
		data, err := a.Fetcher.Fetch(ctx, p.URL)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrSourceFetch, "fetch patch %s", p.URL).
				WithDetail("url", p.URL)
		}
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != p.SHA256 {
			return nil, errors.Newf(errors.ErrPatchIntegrity, "patch %s: checksum mismatch", p.URL).
				WithDetail("url", p.URL).
				WithDetail("expected", p.SHA256).
				WithDetail("actual", got)
		}
		logger.Debug().Str("url", p.URL).Int("size", len(data)).Msg("patch verified")
		ret = append(ret, Fetched{Patch: p, Data: data})
	}
	return ret, nil
}

// Apply applies fetched patches to sourceDir in order and stops at the
// first one that does not apply cleanly. Patch files are stored by digest
// under CacheDir, so the same patch is always passed by the same path.
func (a *Applier) Apply(ctx context.Context, sourceDir string, fetched []Fetched) ([]run.Output, error) {
	tool := a.PatchPath
	if tool == "" {
		tool = "patch"
	}
	dir := a.CacheDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "llbrew-patches")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var outs []run.Output
	for _, p := range fetched {
		file := filepath.Join(dir, p.SHA256[:12]+"-"+p.Name())
		if err := os.WriteFile(file, p.Data, 0o644); err != nil {
			return outs, err
		}
		out, err := a.Runner.Run(ctx, &run.Cmd{
			Dir:  sourceDir,
			Path: tool,
			Args: []string{"-f", "-p" + strconv.Itoa(p.Strip), "-i", file},
		})
		outs = append(outs, out)
		if err != nil {
			return outs, errors.Wrapf(err, errors.ErrPatchApplication, "patch %s does not apply", p.URL).
				WithDetail("url", p.URL).
				WithDiagnostic(out.Diagnostic)
		}
	}
	return outs, nil
}
