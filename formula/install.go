package formula

// Where a secondary component directory is resolved from.
const (
	RootBuild  = "build"
	RootSource = "source"
)

// Install is the install procedure of a formula.
type Install struct {
	Tool      string   // build tool: "cmake" or "autotools"
	BuildType string   // e.g. "Release"
	BuildDir  string   // build directory relative to the source tree
	Args      []string // fixed configure flags
	Secondary *Secondary
}

// Secondary is an auxiliary component installed after the primary one, such
// as language bindings generated into the build tree.
type Secondary struct {
	Dir       string // relative to Root
	Root      string // RootBuild or RootSource
	Installer string // e.g. "setuptools" or "pip"
}
