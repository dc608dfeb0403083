package runner

import "time"

// Result holds the output of a btca invocation.
type Result struct {
	RunID     string        // unique identifier for this run, used in logs
	ExitCode  int           // process exit code; meaningless when TimedOut
	Stdout    []byte        // captured stdout (may be truncated)
	Stderr    []byte        // captured stderr (may be truncated)
	Truncated bool          // true if output exceeded the size cap
	TimedOut  bool          // true if a raced wait elapsed before exit
	Duration  time.Duration // time spent waiting on the child
}
