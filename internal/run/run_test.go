package run

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestExecCapturesDiagnostic(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	var stream bytes.Buffer
	r := &Exec{Stream: &stream}

	out, err := r.Run(context.Background(), &Cmd{
		Dir:  dir,
		Path: "sh",
		Args: []string{"-c", "echo out; echo err >&2; echo $LLBREW_TEST_VAR"},
		Env:  map[string]string{"LLBREW_TEST_VAR": "value"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, dir, out.Dir)
	assert.Equal(t, "sh", out.Argv[0])
	for _, s := range []string{"out", "err", "value"} {
		assert.Contains(t, out.Diagnostic, s)
	}
	assert.Equal(t, out.Diagnostic, stream.String())
}

func TestExecFailure(t *testing.T) {
	skipOnWindows(t)
	out, err := (&Exec{}).Run(context.Background(), &Cmd{
		Path: "sh",
		Args: []string{"-c", "echo 'CMake Error: boom' >&2; exit 3"},
	})
	require.Error(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.Equal(t, "CMake Error: boom\n", out.Diagnostic)
}

func TestExecMissingBinary(t *testing.T) {
	out, err := (&Exec{}).Run(context.Background(), &Cmd{Path: "llbrew-definitely-not-installed"})
	require.Error(t, err)
	assert.Equal(t, -1, out.ExitCode)
}

func TestMergeEnv(t *testing.T) {
	got := MergeEnv([]string{"B=2", "A=1", "broken"}, map[string]string{"A": "override", "C": "3"})
	assert.Equal(t, []string{"A=override", "B=2", "C=3"}, got)
}

func TestCmdString(t *testing.T) {
	c := &Cmd{Path: "cmake", Args: []string{"--build", "."}}
	assert.Equal(t, "cmake --build .", c.String())
	assert.True(t, strings.HasPrefix(c.Argv()[0], "cmake"))
}
