package platform

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverridesFor(t *testing.T) {
	a := Adapter{LibDir: "/opt/homebrew/Cellar/magnum-bindings/2020.06/lib"}

	assert.Equal(t,
		[]string{"CMAKE_INSTALL_NAME_DIR:STRING=/opt/homebrew/Cellar/magnum-bindings/2020.06/lib"},
		a.OverridesFor(Platform{OS: "darwin", Arch: "arm64"}))

	for _, p := range []Platform{
		{OS: "darwin", Arch: "amd64"},
		{OS: "linux", Arch: "arm64"},
		{OS: "plan9", Arch: "mips"},
		{},
	} {
		assert.Empty(t, a.OverridesFor(p), p.String())
	}
	assert.Empty(t, Adapter{}.OverridesFor(Platform{OS: "darwin", Arch: "arm64"}))
}

func TestCurrent(t *testing.T) {
	p := Current()
	assert.Equal(t, runtime.GOOS, p.OS)
	assert.NotEmpty(t, p.Arch)
	assert.Equal(t, runtime.GOOS+"/"+p.Arch, p.String())
}
