// Package runner executes the btca binary with captured output, optional
// timeouts, and output size limits.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Runner executes a single configured binary.
type Runner struct {
	Binary    string        // resolved via PATH unless absolute
	Dir       string        // working directory for the child; empty means cwd
	Timeout   time.Duration // zero means no limit
	MaxOutput int           // bytes per stream; zero means unlimited
}

// Run executes Binary with args and waits for it to exit.
// A non-zero exit is reported through Result.ExitCode, not as an error.
// The returned error is non-nil when the process could not be started or
// when ctx was cancelled before it exited. Hitting Timeout is an outcome:
// the killed child is reported with its exit code.
func (r *Runner) Run(ctx context.Context, args []string) (*Result, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	parent := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = r.Dir
	// Bound the wait on output pipes held open by grandchildren after a kill.
	cmd.WaitDelay = time.Second

	stdout := &limitWriter{limit: r.MaxOutput}
	stderr := &limitWriter{limit: r.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	if err := parent.Err(); err != nil {
		return nil, err
	}
	exitCode, err := exitStatus(r.Binary, runErr)
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:     uuid.New().String(),
		ExitCode:  exitCode,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
		Duration:  time.Since(start),
	}, nil
}

// RunRaced starts Binary with args and waits at most wait for it to exit.
// If the deadline passes first, the returned Result has TimedOut set and
// carries whatever output was captured so far. The child is left running:
// it is abandoned, not killed.
//
// Cancelling ctx stops the wait and returns ctx.Err(); it does not kill the
// child either.
func (r *Runner) RunRaced(ctx context.Context, args []string, wait time.Duration) (*Result, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	start := time.Now()
	cmd := exec.Command(r.Binary, args...)
	cmd.Dir = r.Dir

	stdout := &limitWriter{limit: r.MaxOutput}
	stderr := &limitWriter{limit: r.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("executing %s: %w", r.Binary, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	res := &Result{RunID: uuid.New().String()}
	select {
	case waitErr := <-done:
		exitCode, err := exitStatus(r.Binary, waitErr)
		if err != nil {
			return nil, err
		}
		res.ExitCode = exitCode
	case <-timer.C:
		res.TimedOut = true
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	res.Truncated = stdout.Truncated() || stderr.Truncated()
	res.Duration = time.Since(start)
	return res, nil
}

// exitStatus maps the error from Run or Wait to an exit code.
// Errors that are not exit statuses mean the binary never ran.
func exitStatus(binary string, runErr error) (int, error) {
	if runErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("executing %s: %w", binary, runErr)
}

// limitWriter writes up to limit bytes, then silently discards the rest.
// It is safe to read while the child is still writing.
type limitWriter struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}

// Bytes returns a copy of the captured output.
func (w *limitWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Clone(w.buf.Bytes())
}

func (w *limitWriter) Truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.truncated
}
