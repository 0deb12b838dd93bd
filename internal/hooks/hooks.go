package hooks

import (
	"bytes"
	"context"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"codeberg.org/znoxx/sleepynas/internal/shell"
)

const DefaultBinary = "run-parts"

type Phase int

const (
	// PhasePre runs before the action; the first failing script vetoes it.
	PhasePre Phase = iota
	// PhasePost runs after the action; failures are only logged.
	PhasePost
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "before_sleep"
	case PhasePost:
		return "after_sleep"
	default:
		return "unknown"
	}
}

// Runner executes hook directories with run-parts, which runs every executable
// in the directory in lexical order.
type Runner struct {
	binary string
}

// NewRunner returns a Runner using binary, or DefaultBinary when empty.
func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}

	return &Runner{binary: binary}
}

// Args returns the run-parts arguments for dir in the given phase.
func (r *Runner) Args(dir string, phase Phase) []string {
	if phase == PhasePre {
		return []string{"--exit-on-error", dir}
	}

	return []string{dir}
}

// Run executes the scripts in dir. In PhasePre a failure is returned as
// ErrHookVeto; in PhasePost it is logged and nil is returned.
func (r *Runner) Run(ctx context.Context, dir string, phase Phase) error {
	var output bytes.Buffer
	cmd := shell.Command(ctx, r.binary, r.Args(dir, phase)...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Debug().Str("dir", dir).Stringer("phase", phase).Msg("Running hooks")

	err := cmd.Run()
	if out := bytes.TrimSpace(output.Bytes()); len(out) > 0 {
		logger.Debug().Str("dir", dir).Str("output", string(out)).Msg("Hook output")
	}
	if err == nil {
		return nil
	}

	code, _ := shell.ExitCode(err)
	if phase == PhasePost {
		logger.Warn().Err(err).Str("dir", dir).Int("exit_code", code).Msg("After-sleep hooks failed")
		return nil
	}

	return errors.New().Wrap(errors.ErrHookVeto, err).WithData(dir)
}
