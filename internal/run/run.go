// Package run executes external commands and captures their diagnostics.
package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/goplus/llbrew/internal/logging"
)

// Cmd is one external command.
type Cmd struct {
	Dir  string
	Path string
	Args []string
	Env  map[string]string // merged over the current environment
}

// Argv returns Path followed by Args.
func (c *Cmd) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

func (c *Cmd) String() string {
	return strings.Join(c.Argv(), " ")
}

// Output is what is observed of a finished command.
type Output struct {
	Dir        string
	Argv       []string
	ExitCode   int
	Diagnostic string // combined stdout and stderr
}

// Runner runs commands to completion.
//
// Run returns a non-nil error when the command could not be started or
// exited with a non-zero status. The Output is filled in either way.
type Runner interface {
	Run(ctx context.Context, cmd *Cmd) (Output, error)
}

// Exec is a Runner backed by os/exec.
type Exec struct {
	// Stream, when set, receives the command output as it is produced in
	// addition to the captured diagnostic.
	Stream io.Writer
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, c *Cmd) (Output, error) {
	logger := logging.GetLogger("run")
	out := Output{Dir: c.Dir, Argv: c.Argv()}

	var buf bytes.Buffer
	var w io.Writer = &buf
	if e.Stream != nil {
		w = io.MultiWriter(&buf, e.Stream)
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = w
	cmd.Stderr = w
	if len(c.Env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), c.Env)
	}

	logger.Debug().Strs("argv", out.Argv).Str("dir", c.Dir).Msg("exec")
	start := time.Now()
	err := cmd.Run()
	out.Diagnostic = buf.String()
	if err != nil {
		out.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		}
		logger.Error().
			Strs("argv", out.Argv).
			Str("dir", c.Dir).
			Int("exit", out.ExitCode).
			Err(err).
			Msg("command failed")
		return out, fmt.Errorf("%s: %w", c.Path, err)
	}
	logger.Debug().
		Strs("argv", out.Argv).
		Dur("duration", time.Since(start)).
		Msg("command finished")
	return out, nil
}

// MergeEnv overlays override on a KEY=VALUE environment. The result is
// sorted by key.
func MergeEnv(base []string, override map[string]string) []string {
	env := make(map[string]string, len(base)+len(override))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range override {
		env[k] = v
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
