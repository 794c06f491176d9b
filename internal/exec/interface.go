// Package exec provides an interface for command execution.
package exec

import (
	"context"
	"time"
)

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunWithTimeout executes a command under a deadline. It wraps Run with
	// a derived context so callers like the port scanner can bound a
	// potentially hanging tool.
	RunWithTimeout(ctx context.Context, timeout time.Duration, name string, args ...string) (output []byte, err error)

	// LookPath reports whether the named tool is available in PATH.
	LookPath(name string) bool
}
