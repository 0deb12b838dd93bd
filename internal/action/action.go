package action

import (
	"bytes"
	"context"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"codeberg.org/znoxx/sleepynas/internal/shell"
	"codeberg.org/znoxx/sleepynas/internal/wait"
)

// Actuator runs the power-state command and holds off for a backoff interval afterwards.
type Actuator struct {
	command string
	backoff time.Duration
}

func New(command string, backoff time.Duration) *Actuator {
	return &Actuator{
		command: command,
		backoff: backoff,
	}
}

// Act runs the command through sh -c and waits for it. A non-zero exit is
// ErrAction unless ctx is already cancelled. After success it blocks for the
// backoff interval or until ctx is done.
func (a *Actuator) Act(ctx context.Context) error {
	errFactory := errors.New()

	var output bytes.Buffer
	cmd := shell.Script(ctx, a.command)
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			logger.Debug().Err(err).Str("command", a.command).Msg("Ignoring command failure during shutdown")
			return nil
		}

		code, _ := shell.ExitCode(err)
		return errFactory.Wrap(errors.ErrAction, err).WithData(struct {
			Command  string
			ExitCode int
			Output   string
		}{a.command, code, string(bytes.TrimSpace(output.Bytes()))})
	}

	logger.Debug().
		Str("command", a.command).
		Dur("took", time.Since(start)).
		Msg("Command executed")

	wait.For(ctx, a.backoff)

	return nil
}
