package monitor

import (
	"context"

	"codeberg.org/znoxx/sleepynas/internal/hooks"
	"codeberg.org/znoxx/sleepynas/internal/notify"
)

// Sampler returns one throughput measurement in kB/s.
type Sampler interface {
	Sample(ctx context.Context) (int64, error)
}

// Actuator performs the power action including its backoff.
type Actuator interface {
	Act(ctx context.Context) error
}

// HookRunner runs a hook directory for a phase.
type HookRunner interface {
	Run(ctx context.Context, dir string, phase hooks.Phase) error
}

// Notifier reports status to the sidecar. It must not block longer than its own timeout.
type Notifier interface {
	Notify(ctx context.Context, status notify.Status)
}

// Stats summarizes a Run.
type Stats struct {
	Cycles  int
	Actions int
	Vetoes  int
}
