// Package process runs external commands (git, npm, tar) with context
// cancellation, keeping subprocess handling out of the packages that
// interpret their output.
package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command in a directory and returns its stdout.
type Runner interface {
	Output(ctx context.Context, dir string, name string, args ...string) (string, error)
}

// ExecRunner is the os/exec-backed Runner used outside of tests.
type ExecRunner struct{}

// Output runs the command and returns trimmed stdout. A non-zero exit is an
// error carrying the command line and captured stderr; stderr on a zero
// exit is ignored, since several of the tools we drive emit non-fatal
// diagnostics there.
func (ExecRunner) Output(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s %s failed: %s", name, strings.Join(args, " "), msg)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}
