package runner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestRunner(t *testing.T, binary string) *Runner {
	t.Helper()
	return &Runner{
		Binary:    binary,
		Dir:       t.TempDir(),
		Timeout:   10 * time.Second,
		MaxOutput: 1 << 20,
	}
}

func TestRun_Success(t *testing.T) {
	r := newTestRunner(t, "echo")
	res, err := r.Run(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(string(res.Stdout), "hello") {
		t.Errorf("Stdout = %q, want to contain 'hello'", res.Stdout)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if res.TimedOut {
		t.Error("TimedOut = true, want false")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := newTestRunner(t, "sh")
	res, err := r.Run(context.Background(), []string{"-c", "echo oops >&2; exit 3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(string(res.Stderr), "oops") {
		t.Errorf("Stderr = %q, want to contain 'oops'", res.Stderr)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	r := newTestRunner(t, "nonexistent-binary-xyz-123")
	_, err := r.Run(context.Background(), []string{"ask"})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "nonexistent-binary-xyz-123") {
		t.Errorf("error = %q, want to mention the binary name", err)
	}
}

func TestRun_EmptyArgv(t *testing.T) {
	r := newTestRunner(t, "echo")
	_, err := r.Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestRun_Dir(t *testing.T) {
	r := newTestRunner(t, "sh")
	res, err := r.Run(context.Background(), []string{"-c", "pwd"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(res.Stdout), filepath.Base(r.Dir)) {
		t.Errorf("Stdout = %q, want to contain %q", res.Stdout, filepath.Base(r.Dir))
	}
}

func TestRun_Timeout(t *testing.T) {
	r := newTestRunner(t, "sleep")
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	res, err := r.Run(context.Background(), []string{"10"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A killed process reports a non-zero (usually -1) exit code.
	if res.ExitCode == 0 {
		t.Error("ExitCode = 0, want non-zero")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %s, want the timeout to cut it short", elapsed)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	r := newTestRunner(t, "sleep")
	r.Timeout = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	res, err := r.Run(ctx, []string{"10"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v (result %+v), want context.Canceled", err, res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %s, want cancellation to cut it short", elapsed)
	}
}

func TestRun_OutputTruncation(t *testing.T) {
	r := newTestRunner(t, "sh")
	r.MaxOutput = 100 // very small cap

	// Generate output larger than cap.
	res, err := r.Run(context.Background(), []string{"-c", "dd if=/dev/zero bs=200 count=1 2>/dev/null"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Stdout) > r.MaxOutput {
		t.Errorf("len(Stdout) = %d, want <= %d", len(res.Stdout), r.MaxOutput)
	}
}

func TestRunRaced_Completes(t *testing.T) {
	r := newTestRunner(t, "sh")
	res, err := r.RunRaced(context.Background(), []string{"-c", "echo done"}, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TimedOut {
		t.Error("TimedOut = true, want false")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if strings.TrimSpace(string(res.Stdout)) != "done" {
		t.Errorf("Stdout = %q, want 'done'", res.Stdout)
	}
}

func TestRunRaced_ExitCode(t *testing.T) {
	r := newTestRunner(t, "sh")
	res, err := r.RunRaced(context.Background(), []string{"-c", "exit 124"}, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TimedOut {
		t.Error("TimedOut = true, want false")
	}
	if res.ExitCode != 124 {
		t.Errorf("ExitCode = %d, want 124", res.ExitCode)
	}
}

func TestRunRaced_DeadlineWins(t *testing.T) {
	r := newTestRunner(t, "sleep")

	start := time.Now()
	res, err := r.RunRaced(context.Background(), []string{"10"}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("RunRaced took %s, want about 200ms", elapsed)
	}
}

func TestRunRaced_ContextCancelled(t *testing.T) {
	r := newTestRunner(t, "sleep")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RunRaced(ctx, []string{"10"}, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunRaced_BinaryNotFound(t *testing.T) {
	r := newTestRunner(t, "nonexistent-binary-xyz-123")
	_, err := r.RunRaced(context.Background(), []string{"connect"}, time.Second)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}
