package internal

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/llbrew/internal/build"
	"github.com/goplus/llbrew/internal/config"
	"github.com/goplus/llbrew/internal/errors"
	"github.com/goplus/llbrew/internal/ui"
)

func TestParseModuleArg(t *testing.T) {
	tests := []struct {
		arg         string
		wantName    string
		wantVersion string
	}{
		{"magnum-bindings@2020.06", "magnum-bindings", "2020.06"},
		{"magnum-bindings@2020.06-421-g439945c", "magnum-bindings", "2020.06-421-g439945c"},
		{"magnum-bindings@head", "magnum-bindings", "head"},
		{"magnum-bindings", "magnum-bindings", ""},
		{"multiple@at@signs", "multiple@at", "signs"},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			name, version := parseModuleArg(tt.arg)
			if name != tt.wantName {
				t.Errorf("parseModuleArg(%q) name = %q, want %q", tt.arg, name, tt.wantName)
			}
			if version != tt.wantVersion {
				t.Errorf("parseModuleArg(%q) version = %q, want %q", tt.arg, version, tt.wantVersion)
			}
		})
	}
}

func testConfig(t *testing.T, formulaDirs ...string) *config.Config {
	t.Helper()
	return &config.Config{
		Prefix:   filepath.Join(t.TempDir(), "prefix"),
		CacheDir: filepath.Join(t.TempDir(), "cache"),
		Formula:  config.Formula{Dirs: formulaDirs},
		Tools: config.Tools{
			CMake:  "cmake",
			Make:   "make",
			Python: "python3",
			Git:    "git",
			Patch:  "patch",
		},
	}
}

func TestInstallAlreadyInstalled(t *testing.T) {
	w := newWorkspace(testConfig(t))
	keg := w.layout.Keg("magnum-bindings", "2020.06")
	require.NoError(t, build.WriteReceipt(keg, &build.Receipt{Name: "magnum-bindings", Version: "2020.06"}))

	var out bytes.Buffer
	err := w.install(context.Background(), "magnum-bindings", "2020.06", installOptions{}, ui.New(&out), io.Discard)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "magnum-bindings@2020.06 is already installed")
}

func TestInstallUnknownFormula(t *testing.T) {
	w := newWorkspace(testConfig(t))
	err := w.install(context.Background(), "nope", "", installOptions{}, ui.New(io.Discard), io.Discard)
	assert.True(t, errors.IsCode(err, errors.ErrFormulaNotFound), "got %v", err)
}

// tarball returns a gzipped tar with a single top-level directory.
func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "hello-1.0/" + name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestInstallMissingDependency(t *testing.T) {
	archive := tarball(t, map[string]string{"CMakeLists.txt": "project(hello C)\n"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()
	sum := sha256.Sum256(archive)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "hello"), 0o755))
	record := fmt.Sprintf(`name: hello
version: "1.0"
source:
  url: %s/hello-1.0.tar.gz
  sha256: %s
depends_on:
  - name: llbrew-test-missing-dependency
install:
  tool: cmake
`, srv.URL, hex.EncodeToString(sum[:]))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello", "1.0.yaml"), []byte(record), 0o644))

	w := newWorkspace(testConfig(t, dir))
	var out bytes.Buffer
	err := w.install(context.Background(), "hello", "", installOptions{}, ui.New(&out), io.Discard)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrMissingDependency), "got %v", err)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Init", e.Stage)
	assert.Contains(t, out.String(), "build tree kept in")

	// Nothing is installed or linked.
	_, err = build.ReadReceipt(w.layout.Keg("hello", "1.0"))
	assert.Error(t, err)
	assert.Empty(t, w.layout.Linked("hello"))

	// The source archive was cached.
	entries, err := os.ReadDir(w.layout.DownloadsDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
