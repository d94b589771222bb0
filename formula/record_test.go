package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/llbrew/internal/errors"
)

const yamlRecord = `
name: magnum-bindings
desc: Bindings for the Magnum C++11 graphics engine
homepage: https://magnum.graphics
version: "2020.06"
source:
  git: https://github.com/mosra/magnum-bindings.git
  tag: v2020.06
depends_on:
  - name: cmake
    kind: build
  - name: magnum
naming:
  prefix: MAGNUM_
  since: "2020.06-1"
options:
  - name: python
    flag: WITH_PYTHON
    value: "ON"
    introduced: "2019.10"
patches:
  - url: https://example.org/pybind11-2.6.patch
    sha256: 5D8E5BB2BD93B49B7E2CBB7A4B1E6B36C04F0E1A26C22C0B3D5D5B7F0C1D4E2A
    applies: "2020.06"
install:
  build_type: Release
  secondary:
    dir: src/python
    installer: setuptools
`

const tomlRecord = `
name = "magnum-bindings"
version = "head"

[source]
git = "https://github.com/mosra/magnum-bindings.git"

[naming]
prefix = "MAGNUM_"
since = "2020.06-1"

[[options]]
name = "python"
flag = "WITH_PYTHON"
value = "ON"

[[patches]]
url = "https://example.org/local.patch"
sha256 = "5d8e5bb2bd93b49b7e2cbb7a4b1e6b36c04f0e1a26c22c0b3d5d5b7f0c1d4e2a"
strip = 0

[install]
tool = "cmake"
args = ["CMAKE_SKIP_RPATH=OFF"]
`

func TestLoadYAML(t *testing.T) {
	f, err := Load("magnum-bindings/2020.06.yaml", []byte(yamlRecord))
	require.NoError(t, err)

	assert.Equal(t, "magnum-bindings", f.Name())
	assert.Equal(t, Version("2020.06"), f.Version())
	assert.Equal(t, "v2020.06", f.Source().Ref())
	assert.Equal(t, []Dependency{{Name: "cmake", Kind: BuildDep}, {Name: "magnum", Kind: RunDep}}, f.Dependencies())
	assert.Equal(t, Naming{Prefix: "MAGNUM_", Since: "2020.06-1"}, f.Naming())

	opts := f.Options()
	require.Len(t, opts, 1)
	assert.Equal(t, Version("2019.10"), opts[0].Introduced)
	assert.True(t, opts[0].Applies.IsAlways())

	patches := f.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, 1, patches[0].Strip)
	assert.Equal(t, "pybind11-2.6.patch", patches[0].Name())
	assert.Equal(t, "5d8e5bb2bd93b49b7e2cbb7a4b1e6b36c04f0e1a26c22c0b3d5d5b7f0c1d4e2a", patches[0].SHA256)
	assert.True(t, patches[0].Applies.Match("2020.06"))
	assert.False(t, patches[0].Applies.Match("2019.10"))

	in := f.Install()
	assert.Equal(t, "Release", in.BuildType)
	assert.Equal(t, "src/python", in.Secondary.Dir)
}

func TestLoadTOML(t *testing.T) {
	f, err := Load("head.toml", []byte(tomlRecord))
	require.NoError(t, err)

	assert.True(t, f.IsHead())
	assert.Equal(t, 0, f.Patches()[0].Strip)
	assert.Equal(t, []string{"CMAKE_SKIP_RPATH=OFF"}, f.Install().Args)
	assert.Nil(t, f.Install().Secondary)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, file, data string
	}{
		{"unknown format", "a.json", `{}`},
		{"bad yaml", "a.yaml", "name: [unterminated"},
		{"bad predicate", "a.yaml", "name: x\nversion: '1'\nsource: {git: g, tag: v1}\noptions: [{name: a, flag: A, applies: '>='}]"},
		{"bad dep kind", "a.yaml", "name: x\nversion: '1'\nsource: {git: g, tag: v1}\ndepends_on: [{name: a, kind: weird}]"},
		{"inconsistent source", "a.yaml", "name: x\nversion: '1'\nsource: {git: g, sha256: abc}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.file, []byte(tt.data))
			require.Error(t, err)
			if tt.name != "unknown format" {
				assert.True(t, errors.IsCode(err, errors.ErrMalformedFormula), "got %v", err)
			}
		})
	}
}

func TestIsRecordFile(t *testing.T) {
	assert.True(t, IsRecordFile("a/2020.06.yaml"))
	assert.True(t, IsRecordFile("head.toml"))
	assert.True(t, IsRecordFile("x.yml"))
	assert.False(t, IsRecordFile("patches/fix.patch"))
}
