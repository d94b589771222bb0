// Package vcs fetches repositories with git.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goplus/llbrew/internal/logging"
)

// VCS defines the interface for version control operations.
type VCS interface {
	// Sync ensures the local repo exists and is at the specified ref.
	// ref can be branch, tag, full or abbreviated commit hash, or "HEAD".
	// If dir doesn't exist, it is created and initialised.
	// If dir exists, updates are fetched and the ref is checked out.
	Sync(ctx context.Context, remote, ref, dir string) error

	// Head returns the commit hash checked out in dir.
	Head(ctx context.Context, dir string) (string, error)

	// Tags returns all tags from the remote repository.
	Tags(ctx context.Context, remote string) ([]string, error)

	// Latest returns the latest commit hash (HEAD) from the remote repository.
	// Returns error if no commits exist.
	Latest(ctx context.Context, remote string) (string, error)
}

// gitVCS implements VCS using git.
type gitVCS struct {
	git   string
	depth int
	tags  bool
}

// GitOption configures gitVCS.
type GitOption func(*gitVCS)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		g.git = path
	}
}

// WithDepth limits fetched history to n commits. Zero fetches everything.
// Abbreviated hashes are always resolved against the full history.
func WithDepth(n int) GitOption {
	return func(g *gitVCS) {
		g.depth = n
	}
}

// WithTags fetches all tags along with the ref, so that "git describe"
// works in the checkout.
func WithTags() GitOption {
	return func(g *gitVCS) {
		g.tags = true
	}
}

// NewGitVCS creates a new git VCS instance.
func NewGitVCS(opts ...GitOption) VCS {
	g := &gitVCS{git: "git"}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gitVCS) ensureInit(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return g.run(ctx, dir, "init", "--quiet")
	}
	return nil
}

func (g *gitVCS) Sync(ctx context.Context, remote, ref, dir string) error {
	if err := g.ensureInit(ctx, dir); err != nil {
		return err
	}
	if ref == "" {
		ref = "HEAD"
	}
	if IsAbbrevHash(ref) {
		return g.syncRevision(ctx, remote, ref, dir)
	}
	if err := g.fetch(ctx, remote, dir, g.depth, ref); err != nil {
		// A ref of digits only is a tag or branch name more often than a
		// hash, so the hash is only tried once the name is not found.
		if isDigits(ref) && len(ref) >= 4 {
			if rerr := g.syncRevision(ctx, remote, ref, dir); rerr == nil {
				return nil
			}
		}
		return err
	}
	return g.checkout(ctx, dir, "FETCH_HEAD")
}

// syncRevision checks out an abbreviated commit hash. Servers only accept
// full hashes in a fetch request, so every branch is fetched in full.
func (g *gitVCS) syncRevision(ctx context.Context, remote, rev, dir string) error {
	if err := g.fetch(ctx, remote, dir, 0, "+refs/heads/*:refs/remotes/origin/*"); err != nil {
		return err
	}
	return g.checkout(ctx, dir, rev)
}

func (g *gitVCS) fetch(ctx context.Context, remote, dir string, depth int, refspec string) error {
	args := []string{"fetch", "--quiet"}
	if g.tags {
		args = append(args, "--tags")
	}
	if depth > 0 {
		args = append(args, "--depth", strconv.Itoa(depth))
	}
	args = append(args, remote, refspec)
	if err := g.run(ctx, dir, args...); err != nil {
		return fmt.Errorf("fetch %s: %w", refspec, err)
	}
	return nil
}

func (g *gitVCS) checkout(ctx context.Context, dir, ref string) error {
	if err := g.run(ctx, dir, "checkout", "--quiet", "--force", ref); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

func (g *gitVCS) Head(ctx context.Context, dir string) (string, error) {
	out, err := g.output(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (g *gitVCS) Tags(ctx context.Context, remote string) ([]string, error) {
	output, err := g.output(ctx, "", "ls-remote", "--tags", "--refs", remote)
	if err != nil {
		return nil, fmt.Errorf("list remote tags: %w", err)
	}

	output = strings.TrimSpace(output)
	if output == "" {
		return nil, nil
	}

	var tags []string
	for _, line := range strings.Split(output, "\n") {
		// format: <hash>\trefs/tags/<tag>
		if _, ref, ok := strings.Cut(line, "\t"); ok {
			tags = append(tags, strings.TrimPrefix(ref, "refs/tags/"))
		}
	}
	return tags, nil
}

func (g *gitVCS) Latest(ctx context.Context, remote string) (string, error) {
	output, err := g.output(ctx, "", "ls-remote", remote, "HEAD")
	if err != nil {
		return "", fmt.Errorf("get remote HEAD: %w", err)
	}

	output = strings.TrimSpace(output)
	if output == "" {
		return "", fmt.Errorf("no HEAD found in remote %s", remote)
	}

	// format: <hash>\tHEAD
	hash, _, _ := strings.Cut(output, "\t")
	return hash, nil
}

func (g *gitVCS) run(ctx context.Context, dir string, args ...string) error {
	_, err := g.output(ctx, dir, args...)
	return err
}

func (g *gitVCS) output(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.git, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := logging.GetLogger("vcs")
	logger.Debug().Strs("args", args).Str("dir", dir).Msg("git")
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s", msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// IsAbbrevHash reports whether ref looks like an abbreviated commit hash:
// 4 to 39 lowercase hex digits, at least one of them a letter. Refs made of
// decimal digits only, such as "2019", are taken for names.
func IsAbbrevHash(ref string) bool {
	if len(ref) < 4 || len(ref) >= 40 {
		return false
	}
	letter := false
	for i := 0; i < len(ref); i++ {
		switch c := ref[i]; {
		case 'a' <= c && c <= 'f':
			letter = true
		case '0' <= c && c <= '9':
		default:
			return false
		}
	}
	return letter
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}
