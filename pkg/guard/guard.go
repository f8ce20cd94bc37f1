// Package guard executes allowlisted read-only shell commands for agent tools.
//
// Invariants:
// - Only the first whitespace-delimited token is checked against the allowlist.
// - A non-zero exit code is data, not an error.
// - Timeouts and spawn failures are structured errors distinct from exit codes.
package guard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyCommand is returned when the command string is blank
	ErrEmptyCommand = errors.New("command is empty")

	// ErrExecutionTimeout is returned when a command exceeds its deadline
	ErrExecutionTimeout = errors.New("command execution timed out")
)

// allowlist is the fixed set of read-only base executables. Membership is
// checked against the base command only, never prefixes.
var allowlist = []string{"ls", "cat", "pwd", "stat", "find", "head", "tail", "grep"}

// DefaultTimeout bounds command execution when the caller does not
const DefaultTimeout = 10 * time.Second

// NotAllowedError reports a command rejected by the allowlist
type NotAllowedError struct {
	Command string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("command '%s' is not allowed. Allowed commands: %s",
		e.Command, strings.Join(allowlist, ", "))
}

// SpawnError reports a command that could not be started
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to run command '%s': %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Request describes a guarded command execution
type Request struct {
	Command string        // full command string, tokenized on whitespace
	Workdir string        // working directory (process cwd when empty)
	Timeout time.Duration // defaults to DefaultTimeout
}

// ExecResult carries the verbatim outcome of a completed command
type ExecResult struct {
	Command  string        `json:"command"`
	Workdir  string        `json:"workdir"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"-"`
}

// Allowlist returns a copy of the fixed command allowlist
func Allowlist() []string {
	out := make([]string, len(allowlist))
	copy(out, allowlist)
	return out
}

// IsAllowed reports whether the base executable of a command string is allowlisted
func IsAllowed(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	for _, allowed := range allowlist {
		if fields[0] == allowed {
			return true
		}
	}
	return false
}

// Run validates and executes an allowlisted command.
// The command string is tokenized on whitespace only; no shell
// metacharacters (pipes, redirects, chaining) are interpreted.
func Run(ctx context.Context, req Request) (*ExecResult, error) {
	fields := strings.Fields(req.Command)
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}

	base := fields[0]
	if !IsAllowed(req.Command) {
		log.Warn().Str("command", base).Msg("Command rejected by allowlist")
		return nil, &NotAllowedError{Command: base}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, base, fields[1:]...)
	if req.Workdir != "" {
		cmd.Dir = req.Workdir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if execCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %v", ErrExecutionTimeout, timeout)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, &SpawnError{Command: base, Err: err}
		}
	}

	log.Debug().
		Str("command", base).
		Int("exit_code", exitCode).
		Dur("duration", duration).
		Msg("Guarded command executed")

	return &ExecResult{
		Command:  req.Command,
		Workdir:  cmd.Dir,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}, nil
}
