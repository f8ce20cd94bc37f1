package guard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsDisallowedCommand(t *testing.T) {
	_, err := Run(context.Background(), Request{Command: "rm -rf /"})

	require.Error(t, err)
	var notAllowed *NotAllowedError
	require.True(t, errors.As(err, &notAllowed))
	assert.Equal(t, "rm", notAllowed.Command)

	// The rejection enumerates the exact allowlist
	for _, cmd := range []string{"ls", "cat", "pwd", "stat", "find", "head", "tail", "grep"} {
		assert.Contains(t, err.Error(), cmd)
	}
}

func TestRun_OnlyBaseTokenIsChecked(t *testing.T) {
	// "lsof" must not pass because "ls" is a prefix
	_, err := Run(context.Background(), Request{Command: "lsof -i"})
	var notAllowed *NotAllowedError
	require.True(t, errors.As(err, &notAllowed))
	assert.Equal(t, "lsof", notAllowed.Command)
}

func TestRun_EmptyCommand(t *testing.T) {
	_, err := Run(context.Background(), Request{Command: "   "})
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestRun_ExecutesAllowedCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX commands")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0644))

	res, err := Run(context.Background(), Request{Command: "ls", Workdir: dir})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello.txt")
	assert.Empty(t, res.Stderr)
}

func TestRun_NonZeroExitIsData(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX commands")
	}

	res, err := Run(context.Background(), Request{
		Command: "cat " + filepath.Join(t.TempDir(), "missing.txt"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
}

func TestRun_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX commands")
	}

	// tail -f never terminates on its own
	path := filepath.Join(t.TempDir(), "stream.log")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0644))

	_, err := Run(context.Background(), Request{
		Command: "tail -f " + path,
		Timeout: 100 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrExecutionTimeout)
}

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"ls -la src", true},
		{"grep -r TODO .", true},
		{"pwd", true},
		{"rm -rf /", false},
		{"curl https://example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.Fields(tt.command+" _")[0], func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.command))
		})
	}
}
