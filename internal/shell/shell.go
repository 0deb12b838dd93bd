// Package shell starts external utilities in their own process group with a
// C locale, so their textual output is stable and an interrupt can stop the
// whole tree.
package shell

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const waitDelay = 2 * time.Second

// Command prepares name with args. When ctx is cancelled the process group
// receives SIGTERM; output pipes are abandoned after waitDelay.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	return cmd
}

// Script runs a command line through sh -c.
func Script(ctx context.Context, line string) *exec.Cmd {
	return Command(ctx, "sh", "-c", line)
}

// ExitCode extracts the exit status from an error returned by Run/Output.
// ok is false when the process did not run to completion.
func ExitCode(err error) (code int, ok bool) {
	if err == nil {
		return 0, true
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return exitErr.ExitCode(), true
	}

	return -1, false
}
