// Package source materializes the source tree of a formula.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goplus/llbrew/formula"
	"github.com/goplus/llbrew/internal/errors"
	"github.com/goplus/llbrew/internal/logging"
	"github.com/goplus/llbrew/internal/vcs"
)

// Fetcher retrieves formula sources into a directory.
type Fetcher struct {
	VCS    vcs.VCS
	Client *http.Client

	// CacheDir keeps downloaded archives, named by their checksum.
	CacheDir string
}

// Fetch places the source tree of src in destDir and returns what was
// fetched: the checked out commit for repositories, the archive checksum
// otherwise.
func (f *Fetcher) Fetch(ctx context.Context, src formula.Source, destDir string) (string, error) {
	defer logging.LogOperationStart(logging.GetLogger("source"), "fetch "+src.String())()
	switch {
	case src.IsRepo():
		return f.clone(ctx, src, destDir)
	case src.IsArchive():
		return f.archive(ctx, src, destDir)
	}
	return "", errors.New(errors.ErrSourceFetch, "formula has no source")
}

func (f *Fetcher) clone(ctx context.Context, src formula.Source, destDir string) (string, error) {
	logger := logging.GetLogger("source")
	ref := src.Ref()
	if err := f.VCS.Sync(ctx, src.Repo, ref, destDir); err != nil {
		return "", errors.Wrapf(err, errors.ErrSourceFetch, "clone %s at %s", src.Repo, ref).
			WithDetail("repo", src.Repo)
	}
	head, err := f.VCS.Head(ctx, destDir)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrSourceFetch, "clone %s", src.Repo)
	}
	if src.Revision != "" && !strings.HasPrefix(head, src.Revision) {
		return "", errors.Newf(errors.ErrSourceFetch, "%s at %s is commit %s, want %s", src.Repo, ref, head, src.Revision).
			WithDetail("repo", src.Repo)
	}
	logger.Info().Str("repo", src.Repo).Str("ref", ref).Str("commit", head).Msg("source ready")
	return head, nil
}

func (f *Fetcher) archive(ctx context.Context, src formula.Source, destDir string) (string, error) {
	file, err := f.download(ctx, src)
	if err != nil {
		return "", err
	}
	if err := Extract(file, destDir); err != nil {
		return "", errors.Wrapf(err, errors.ErrSourceFetch, "extract %s", src.URL).
			WithDetail("url", src.URL)
	}
	logger := logging.GetLogger("source")
	logger.Info().Str("url", src.URL).Str("dir", destDir).Msg("source ready")
	return src.SHA256, nil
}

// download returns the path of the verified archive in CacheDir,
// downloading it first unless it is already there.
func (f *Fetcher) download(ctx context.Context, src formula.Source) (string, error) {
	dir := f.CacheDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "llbrew-downloads")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	file := filepath.Join(dir, src.SHA256[:12]+"-"+path.Base(src.URL))
	if sum, err := fileSum(file); err == nil && sum == src.SHA256 {
		return file, nil
	}

	fail := func(err error) (string, error) {
		return "", errors.Wrapf(err, errors.ErrSourceFetch, "download %s", src.URL).
			WithDetail("url", src.URL)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return fail(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("GET: %s", resp.Status))
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fail(err)
	}
	defer os.Remove(tmp.Name())
	h := sha256.New()
	_, err = io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fail(err)
	}
	if sum := hex.EncodeToString(h.Sum(nil)); sum != src.SHA256 {
		return "", errors.Newf(errors.ErrSourceFetch, "%s: checksum mismatch", src.URL).
			WithDetail("url", src.URL).
			WithDetail("expected", src.SHA256).
			WithDetail("actual", sum)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return fail(err)
	}
	return file, nil
}

func fileSum(name string) (string, error) {
	fh, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer fh.Close()
	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
