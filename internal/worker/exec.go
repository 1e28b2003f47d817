package worker

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ErrTimeout marks a subprocess that exceeded its wall-clock budget.
var ErrTimeout = errors.New("command timed out")

// maxOutputBytes bounds how much captured stdout/stderr is retained per
// stream; anything beyond is dropped and marked as truncated.
const maxOutputBytes = 64 * 1024

const truncationMarker = "\n... [output truncated]"

// runCommand executes a shell command with a wall-clock timeout, capturing
// bounded stdout and stderr. The process is forcibly terminated on timeout
// or context cancellation.
func runCommand(ctx context.Context, timeout time.Duration, dir, command string) (stdout, stderr string, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	// Run the shell in its own process group and kill the whole group on
	// cancellation: killing only the shell would leave backgrounded
	// descendants holding the stdout/stderr pipes, and Run would keep
	// waiting on them long past the deadline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	// Backstop for descendants that escaped the group kill.
	cmd.WaitDelay = 3 * time.Second

	var outBuf, errBuf boundedBuffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return stdout, stderr, ErrTimeout
		}
		return stdout, stderr, ctxErr
	}
	return stdout, stderr, err
}

// boundedBuffer retains at most maxOutputBytes and remembers whether it had
// to drop anything.
type boundedBuffer struct {
	b         strings.Builder
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	room := maxOutputBytes - b.b.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.b.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.b.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	if b.truncated {
		return b.b.String() + truncationMarker
	}
	return b.b.String()
}

// expand substitutes the {dir} and {source} placeholders of a command
// template.
func expand(template, dir, source string) string {
	return strings.NewReplacer("{dir}", dir, "{source}", source).Replace(template)
}

// shellQuote wraps s in single quotes so it survives as one argument when
// the driver command line goes through the shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
