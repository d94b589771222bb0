// Package buildsys declares the external build tools a formula install is
// driven through.
package buildsys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goplus/llbrew/internal/run"
)

// BuildTool is a native build system (CMake, Autotools, ...). Every call
// blocks until the external process exits.
type BuildTool interface {
	// Name identifies the tool in formulas ("cmake", "autotools").
	Name() string

	// StdFlags returns the flags every configure step gets: install prefix
	// and build type, in the tool's FLAG=VALUE definition form.
	StdFlags(prefix, buildType string) []string

	// Use exposes the installed dependencies rooted at roots to later
	// steps, replacing any roots given before.
	Use(roots ...string)

	Configure(ctx context.Context, flags []string, sourceDir, buildDir string) (run.Output, error)
	Build(ctx context.Context, buildDir string) (run.Output, error)
	Install(ctx context.Context, buildDir string) (run.Output, error)
}

// SecondaryInstaller installs an auxiliary component, such as language
// bindings, from subDir into prefix.
type SecondaryInstaller interface {
	Install(ctx context.Context, subDir, prefix string) (run.Output, error)
}

// Env accumulates the environment that makes dependencies installed outside
// the system paths visible to compilers, pkg-config and CMake.
type Env map[string]string

// NewEnv returns the environment exposing every dependency in roots. Later
// roots take precedence in search paths.
func NewEnv(roots ...string) Env {
	e := Env{}
	for _, root := range roots {
		e.Use(root)
	}
	return e
}

// Use adds the include, lib and pkg-config directories found under root.
func (e Env) Use(root string) {
	includeDir := filepath.Join(root, "include")
	libDir := filepath.Join(root, "lib")
	pkgconfigDir := filepath.Join(libDir, "pkgconfig")

	if exists(pkgconfigDir) {
		e.prependPath("PKG_CONFIG_PATH", pkgconfigDir)
	}
	e.prependPath("CMAKE_PREFIX_PATH", root)
	if exists(includeDir) {
		e.prependPath("CMAKE_INCLUDE_PATH", includeDir)
	}
	if exists(libDir) {
		e.prependPath("CMAKE_LIBRARY_PATH", libDir)
	}

	if runtime.GOOS == "windows" {
		if exists(includeDir) {
			e.prependPath("INCLUDE", includeDir)
		}
		if exists(libDir) {
			e.prependPath("LIB", libDir)
		}
		return
	}
	if exists(includeDir) {
		e.appendFlag("CPPFLAGS", "-I"+includeDir)
	}
	if exists(libDir) {
		e.appendFlag("LDFLAGS", "-L"+libDir)
	}
}

// prependPath prepends value to a PATH-style variable, falling back to the
// process environment for the initial value.
func (e Env) prependPath(key, value string) {
	sep := string(os.PathListSeparator)
	if cur := e.get(key); cur != "" {
		value += sep + cur
	}
	e[key] = value
}

// appendFlag appends a space-separated flag.
func (e Env) appendFlag(key, flag string) {
	if cur := e.get(key); cur != "" {
		flag = strings.TrimSpace(cur + " " + flag)
	}
	e[key] = flag
}

func (e Env) get(key string) string {
	if v, ok := e[key]; ok {
		return v
	}
	return os.Getenv(key)
}

// SplitDefine splits a FLAG[:TYPE]=VALUE definition.
func SplitDefine(def string) (name, typ, value string, err error) {
	key, value, ok := strings.Cut(def, "=")
	if !ok || key == "" {
		return "", "", "", fmt.Errorf("definition %q is not of the form NAME=VALUE", def)
	}
	name, typ, _ = strings.Cut(key, ":")
	return name, typ, value, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
