// Package platform supplies the per-platform configure overrides.
package platform

import (
	"runtime"

	"github.com/goplus/llbrew/internal/logging"
)

// Platform is a target operating system and CPU architecture, in GOOS and
// GOARCH spelling.
type Platform struct {
	OS   string
	Arch string
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// Current returns the native platform of the host. On macOS a translated
// (Rosetta) process still reports arm64.
func Current() Platform {
	p := Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
	if arch, ok := nativeArch(); ok && arch != p.Arch {
		logger := logging.GetLogger("platform")
		logger.Debug().
			Str("process", p.Arch).
			Str("native", arch).
			Msg("running translated")
		p.Arch = arch
	}
	return p
}

// Adapter computes configure overrides for a platform.
type Adapter struct {
	// LibDir is the package manager's library directory for the install.
	LibDir string
}

type override func(a Adapter) []string

// overrides is keyed by Platform.String().
var overrides = map[string]override{
	// The default install-name search covers /usr/local/lib and /usr/lib
	// only; arm64 packages live under a dedicated prefix.
	"darwin/arm64": func(a Adapter) []string {
		if a.LibDir == "" {
			return nil
		}
		return []string{"CMAKE_INSTALL_NAME_DIR:STRING=" + a.LibDir}
	},
}

// OverridesFor returns the literal configure flags p needs, or nothing when
// p needs none or is unknown.
func (a Adapter) OverridesFor(p Platform) []string {
	if fn, ok := overrides[p.String()]; ok {
		return fn(a)
	}
	return nil
}
