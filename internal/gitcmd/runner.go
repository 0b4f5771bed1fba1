// Package gitcmd shells out to the git binary and parses its textual output
// into the data model. Git is treated as a black box with a textual contract;
// no object-format parsing happens here.
package gitcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"gitre-go/internal/gitre"
)

// ErrProcessNotFound is returned when the underlying binary cannot be
// located at all. A non-zero exit status is not an error at this level.
var ErrProcessNotFound = errors.New("executable not found")

// Result holds the captured output of one external command. Stdout and
// Stderr are decoded losslessly where possible; invalid byte sequences are
// replaced with U+FFFD rather than propagated as errors.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes an external command in a working directory.
type Runner interface {
	// Run executes the command and reports a non-zero exit status in the
	// Result, not as an error.
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
	// RunChecked is Run for commands whose failure is truly exceptional:
	// a non-zero exit status becomes an error.
	RunChecked(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct {
	logger gitre.Logger
}

func NewExecRunner(logger gitre.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "cmd", name+" "+strings.Join(args, " "), "dir", dir)

	err := cmd.Run()
	res := Result{
		Stdout: sanitize(stdout.String()),
		Stderr: sanitize(stderr.String()),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return res, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
		}
		return res, fmt.Errorf("running %s: %w", name, err)
	}
	return res, nil
}

func (r *ExecRunner) RunChecked(ctx context.Context, dir, name string, args ...string) (Result, error) {
	res, err := r.Run(ctx, dir, name, args...)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("%s %s exited with status %d: %s",
			name, strings.Join(args, " "), res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// sanitize replaces invalid UTF-8 sequences so binary file names or
// non-UTF-8 commit content never surface as decoding failures downstream.
func sanitize(s string) string {
	return strings.ToValidUTF8(s, "�")
}
