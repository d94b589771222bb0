// Package repo looks up formula records in layered formula repositories.
//
// A repository is a directory tree with one directory per package holding
// one record per version, plus any files the records refer to:
//
//	magnum-bindings/
//	  2019.10.yaml
//	  2020.06.yaml
//	  head.yaml
//	  patches/pybind11-2.6.patch
package repo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"sort"

	"github.com/goplus/llbrew/formula"
	"github.com/goplus/llbrew/internal/env"
	"github.com/goplus/llbrew/internal/errors"
	"github.com/goplus/llbrew/internal/logging"
	"github.com/goplus/llbrew/internal/vcs"
)

type layer struct {
	name string
	fsys fs.FS
}

// Store manages formula repositories, handling lookup order and
// synchronization of the remote one. Earlier layers shadow later ones
// version by version.
type Store struct {
	layers []layer

	dir    string // local copy of remote
	remote string
	vcs    vcs.VCS
}

// Option configures a Store.
type Option func(*Store)

// WithDirs adds formula directories on the local file system.
func WithDirs(dirs ...string) Option {
	return func(s *Store) {
		for _, dir := range dirs {
			s.layers = append(s.layers, layer{name: dir, fsys: os.DirFS(dir)})
		}
	}
}

// WithRemote adds a git formula repository kept in dir. Sync updates it.
func WithRemote(remote, dir string, v vcs.VCS) Option {
	return func(s *Store) {
		s.remote, s.dir, s.vcs = remote, dir, v
		s.layers = append(s.layers, layer{name: remote, fsys: os.DirFS(dir)})
	}
}

// WithFS adds a formula repository backed by fsys, such as the embedded
// catalogue.
func WithFS(name string, fsys fs.FS) Option {
	return func(s *Store) {
		s.layers = append(s.layers, layer{name: name, fsys: fsys})
	}
}

// New creates a Store. Layers are searched in option order.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open implements fs.FS over all layers, so files shipped next to records
// can be read without knowing which layer holds them.
func (s *Store) Open(name string) (fs.File, error) {
	for _, l := range s.layers {
		f, err := l.fsys.Open(name)
		if err == nil {
			return f, nil
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Versions returns every formula of the package name, ordered by version.
func (s *Store) Versions(name string) ([]*formula.Formula, error) {
	logger := logging.GetLogger("repo")
	byVersion := make(map[formula.Version]*formula.Formula)
	for _, l := range s.layers {
		entries, err := fs.ReadDir(l.fsys, name)
		if err != nil {
			continue
		}
		seen := make(map[formula.Version]string)
		for _, e := range entries {
			if e.IsDir() || !formula.IsRecordFile(e.Name()) {
				continue
			}
			file := path.Join(name, e.Name())
			data, err := fs.ReadFile(l.fsys, file)
			if err != nil {
				return nil, err
			}
			f, err := formula.Load(file, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", l.name, err)
			}
			if f.Name() != name {
				return nil, errors.Newf(errors.ErrMalformedFormula, "%s: %s declares formula %s", l.name, file, f.Name())
			}
			v := f.Version()
			if prev, ok := seen[v]; ok {
				return nil, errors.Newf(errors.ErrMalformedFormula, "%s: %s and %s both declare version %s", l.name, prev, file, v)
			}
			seen[v] = file
			if _, ok := byVersion[v]; ok {
				logger.Debug().Str("file", file).Str("layer", l.name).Msg("shadowed")
				continue
			}
			byVersion[v] = f
		}
	}
	if len(byVersion) == 0 {
		return nil, errors.Newf(errors.ErrFormulaNotFound, "no formula for %s", name).WithDetail("name", name)
	}
	ret := make([]*formula.Formula, 0, len(byVersion))
	for _, f := range byVersion {
		ret = append(ret, f)
	}
	slices.SortFunc(ret, func(a, b *formula.Formula) int {
		return a.Version().Compare(b.Version())
	})
	return ret, nil
}

// Select returns the formula of name matching selector: the newest
// release when selector is empty, the development formula for "head",
// otherwise the exact version.
func (s *Store) Select(name, selector string) (*formula.Formula, error) {
	all, err := s.Versions(name)
	if err != nil {
		return nil, err
	}
	if selector == "" {
		for i := len(all) - 1; i >= 0; i-- {
			if !all[i].IsHead() {
				return all[i], nil
			}
		}
		return all[len(all)-1], nil
	}
	want := formula.Version(selector)
	for _, f := range all {
		if f.Version().Compare(want) == 0 && (f.IsHead() == want.IsHead()) {
			return f, nil
		}
	}
	return nil, errors.Newf(errors.ErrFormulaNotFound, "no formula for %s@%s", name, selector).
		WithDetail("name", name).
		WithDetail("version", selector)
}

// Names returns the packages found in any layer, sorted.
func (s *Store) Names() []string {
	set := make(map[string]bool)
	for _, l := range s.layers {
		entries, err := fs.ReadDir(l.fsys, ".")
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() && !isHidden(e.Name()) {
				set[e.Name()] = true
			}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Sync brings the remote formula repository to its latest commit and
// returns that commit. Concurrent syncs are serialised by a file lock.
func (s *Store) Sync(ctx context.Context) (string, error) {
	if s.remote == "" {
		return "", nil
	}
	defer logging.LogOperationStart(logging.GetLogger("repo"), "sync "+s.remote)()
	latest, err := s.vcs.Latest(ctx, s.remote)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrSourceFetch, "sync %s", s.remote)
	}

	unlock, err := env.Lock(ctx, s.dir)
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := s.vcs.Sync(ctx, s.remote, latest, s.dir); err != nil {
		return "", errors.Wrapf(err, errors.ErrSourceFetch, "sync %s", s.remote)
	}
	logger := logging.GetLogger("repo")
	logger.Info().Str("remote", s.remote).Str("commit", latest).Msg("formulas synced")
	return latest, nil
}

func isHidden(name string) bool {
	return name != "" && (name[0] == '.' || name[0] == '_')
}
