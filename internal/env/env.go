// Package env describes where llbrew keeps things on disk.
//
//	<prefix>/
//	  Cellar/<name>/<version>/     # install prefix of one version (keg)
//	  opt/<name> -> ../Cellar/<name>/<version>
//	<cache>/
//	  builds/<name>-<version>-<run>/  # per-run working directory
//	  downloads/                      # verified source archives
//	  patches/                        # verified patch files
//	  formulas/                       # synced formula repository
package env

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Layout is the on-disk layout rooted at an install prefix and a cache
// directory.
type Layout struct {
	Prefix string
	Cache  string
}

func (l Layout) Cellar() string { return filepath.Join(l.Prefix, "Cellar") }
func (l Layout) OptDir() string { return filepath.Join(l.Prefix, "opt") }

// Keg returns the install prefix of name at version.
func (l Layout) Keg(name, version string) string {
	return filepath.Join(l.Cellar(), name, version)
}

// Opt returns the stable link to the linked keg of name.
func (l Layout) Opt(name string) string {
	return filepath.Join(l.OptDir(), name)
}

func (l Layout) DownloadsDir() string { return filepath.Join(l.Cache, "downloads") }
func (l Layout) PatchesDir() string   { return filepath.Join(l.Cache, "patches") }
func (l Layout) FormulaDir() string   { return filepath.Join(l.Cache, "formulas") }

// WorkDir returns a working directory unique to one install run.
func (l Layout) WorkDir(name, version, runID string) string {
	return filepath.Join(l.Cache, "builds", fmt.Sprintf("%s-%s-%s", name, version, runID))
}

// Link points opt/<name> at the keg of version, replacing an older link.
func (l Layout) Link(name, version string) error {
	if err := os.MkdirAll(l.OptDir(), 0o755); err != nil {
		return err
	}
	opt := l.Opt(name)
	target, err := filepath.Rel(l.OptDir(), l.Keg(name, version))
	if err != nil {
		return err
	}
	tmp := opt + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	return os.Rename(tmp, opt)
}

// Linked returns the version opt/<name> points at, or "" if it is not
// linked.
func (l Layout) Linked(name string) string {
	target, err := os.Readlink(l.Opt(name))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

// LockTimeout bounds how long Lock waits for another llbrew process.
var LockTimeout = 5 * time.Minute

// Lock takes an exclusive file lock on path + ".lock".
func Lock(ctx context.Context, path string) (unlock func(), err error) {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(lockPath)
	ctx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("timeout waiting for lock %s", lockPath)
	}
	return func() { lock.Unlock() }, nil
}
