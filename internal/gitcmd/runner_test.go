package gitcmd

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	"gitre-go/internal/gitre"
)

func newTestRunner() *ExecRunner {
	return NewExecRunner(gitre.NopLogger{})
}

func TestExecRunner_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	ctx := context.Background()
	r := newTestRunner()

	t.Run("captures stdout", func(t *testing.T) {
		res, err := r.Run(ctx, "", "sh", "-c", "echo hello")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if strings.TrimSpace(res.Stdout) != "hello" {
			t.Errorf("Stdout = %q, want %q", res.Stdout, "hello\n")
		}
		if res.ExitCode != 0 {
			t.Errorf("ExitCode = %d, want 0", res.ExitCode)
		}
	})

	t.Run("captures stderr separately", func(t *testing.T) {
		res, err := r.Run(ctx, "", "sh", "-c", "echo out; echo err >&2")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if strings.TrimSpace(res.Stdout) != "out" {
			t.Errorf("Stdout = %q, want %q", res.Stdout, "out")
		}
		if strings.TrimSpace(res.Stderr) != "err" {
			t.Errorf("Stderr = %q, want %q", res.Stderr, "err")
		}
	})

	t.Run("reports non-zero exit in result", func(t *testing.T) {
		res, err := r.Run(ctx, "", "sh", "-c", "exit 3")
		if err != nil {
			t.Fatalf("Run() error = %v, want nil for non-zero exit", err)
		}
		if res.ExitCode != 3 {
			t.Errorf("ExitCode = %d, want 3", res.ExitCode)
		}
	})

	t.Run("missing binary is ErrProcessNotFound", func(t *testing.T) {
		_, err := r.Run(ctx, "", "definitely-not-a-real-binary-gitre")
		if !errors.Is(err, ErrProcessNotFound) {
			t.Errorf("error = %v, want ErrProcessNotFound", err)
		}
	})
}

func TestExecRunner_RunChecked(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	ctx := context.Background()
	r := newTestRunner()

	t.Run("passes through success", func(t *testing.T) {
		res, err := r.RunChecked(ctx, "", "sh", "-c", "echo ok")
		if err != nil {
			t.Fatalf("RunChecked() error = %v", err)
		}
		if strings.TrimSpace(res.Stdout) != "ok" {
			t.Errorf("Stdout = %q, want %q", res.Stdout, "ok")
		}
	})

	t.Run("non-zero exit becomes error with stderr", func(t *testing.T) {
		_, err := r.RunChecked(ctx, "", "sh", "-c", "echo boom >&2; exit 1")
		if err == nil {
			t.Fatal("RunChecked() expected error for non-zero exit")
		}
		if !strings.Contains(err.Error(), "boom") {
			t.Errorf("error %q should include stderr content", err)
		}
	})
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "valid UTF-8 unchanged", input: "héllo", want: "héllo"},
		{name: "invalid bytes replaced", input: "a\xffb", want: "a�b"},
		{name: "empty string", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitize(tt.input); got != tt.want {
				t.Errorf("sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
