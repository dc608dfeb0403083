package btca

import (
	"fmt"
	"strings"

	"github.com/deixis/btcamcp/internal/runner"
)

// unknownError stands in when a failing run printed nothing at all.
const unknownError = "Unknown error"

// exitTimedOut is the conventional "command timed out" status.
const exitTimedOut = 124

// Normalize turns a finished run into the text handed back to the agent:
// trimmed stdout on exit 0, otherwise a formatted error.
func Normalize(res *runner.Result) string {
	stdout := strings.TrimSpace(string(res.Stdout))
	if res.ExitCode == 0 {
		return stdout
	}
	return FormatError(res.ExitCode, strings.TrimSpace(string(res.Stderr)), stdout)
}

// FormatError renders "Error (exit <status>): <message>", preferring stderr,
// then stdout, then a placeholder. Inputs are expected to be trimmed.
func FormatError(exitCode int, stderr, stdout string) string {
	msg := stderr
	if msg == "" {
		msg = stdout
	}
	if msg == "" {
		msg = unknownError
	}
	return fmt.Sprintf("Error (exit %d): %s", exitCode, msg)
}
