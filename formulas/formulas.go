// Package formulas embeds the formula catalogue shipped with llbrew.
package formulas

import "embed"

// FS holds one directory per package, see internal/formula/repo.
//
//go:embed magnum-bindings
var FS embed.FS
