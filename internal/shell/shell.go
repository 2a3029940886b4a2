// Package shell runs the external tools the bring-up drives (docker, git, dvc,
// python). Runner is the seam every stage depends on, so tests substitute a
// recording fake instead of spawning processes.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Runner executes commands in a working directory.
type Runner interface {
	// Output runs the command and returns its combined output. A non-zero
	// exit is reported as an *ExitError carrying the output.
	Output(ctx context.Context, dir string, name string, args ...string) (string, error)
	// Run runs the command streaming stdout/stderr to the configured writers.
	Run(ctx context.Context, dir string, name string, args ...string) error
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Output  string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Code, strings.TrimSpace(e.Output))
}

// ExitCode returns the exit code carried by err, 0 for nil and -1 when err
// does not come from a finished process.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// Exec is the process-backed Runner.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExec returns a Runner streaming to the process stdout/stderr.
func NewExec() *Exec {
	return &Exec{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Output captures combined output. Cancelling ctx kills the process.
func (e *Exec) Output(ctx context.Context, dir string, name string, args ...string) (string, error) {
	line := CommandLine(name, args...)
	slog.DebugContext(ctx, "running command", "cmd", line, "dir", dir)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), &ExitError{Command: line, Code: exitErr.ExitCode(), Output: string(out)}
	}
	return string(out), fmt.Errorf("running %s: %w", line, err)
}

// Run starts the command with exec.CommandContext so cancellation kills
// long-running builds.
func (e *Exec) Run(ctx context.Context, dir string, name string, args ...string) error {
	line := CommandLine(name, args...)
	slog.DebugContext(ctx, "running command", "cmd", line, "dir", dir)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: line, Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("running %s: %w", line, err)
}

// CommandLine renders name and args as a single shell-style line, quoting
// arguments that contain whitespace or quotes.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quote(name))
	for _, a := range args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
