package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gitre-go/internal/gitcmd"
)

// ScriptedRunner is a gitcmd.Runner that replays canned results keyed by the
// command line (name and args joined by spaces, directory ignored). An
// unscripted command fails the call so tests catch unexpected invocations.
// Safe for concurrent use.
type ScriptedRunner struct {
	mu      sync.Mutex
	results map[string]gitcmd.Result
	errs    map[string]error
	calls   []string
}

func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{
		results: map[string]gitcmd.Result{},
		errs:    map[string]error{},
	}
}

// Stub registers the result returned for the given command line.
func (r *ScriptedRunner) Stub(cmdline string, result gitcmd.Result) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[cmdline] = result
	return r
}

// StubOut registers a zero-exit result with the given stdout.
func (r *ScriptedRunner) StubOut(cmdline, stdout string) *ScriptedRunner {
	return r.Stub(cmdline, gitcmd.Result{Stdout: stdout})
}

// StubErr registers a hard error (process-level failure) for the command line.
func (r *ScriptedRunner) StubErr(cmdline string, err error) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[cmdline] = err
	return r
}

// Calls returns the command lines executed so far, in order.
func (r *ScriptedRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

func (r *ScriptedRunner) Run(ctx context.Context, dir, name string, args ...string) (gitcmd.Result, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmdline)

	if err, ok := r.errs[cmdline]; ok {
		return gitcmd.Result{}, err
	}
	if res, ok := r.results[cmdline]; ok {
		return res, nil
	}
	return gitcmd.Result{}, fmt.Errorf("unscripted command: %q", cmdline)
}

func (r *ScriptedRunner) RunChecked(ctx context.Context, dir, name string, args ...string) (gitcmd.Result, error) {
	res, err := r.Run(ctx, dir, name, args...)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("%s exited with status %d: %s", name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}
