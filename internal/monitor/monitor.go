package monitor

import (
	"context"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/hooks"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"codeberg.org/znoxx/sleepynas/internal/notify"
	"codeberg.org/znoxx/sleepynas/internal/wait"
)

type Config struct {
	// Threshold in kB/s; a measurement at or below it triggers the action.
	Threshold   int64
	Interval    time.Duration
	BeforeSleep string
	AfterSleep  string
}

type Monitor struct {
	cfg      Config
	sampler  Sampler
	actuator Actuator
	hooks    HookRunner
	notifier Notifier
}

type Option func(*Monitor)

// WithHooks enables the before/after sleep directories from Config.
func WithHooks(r HookRunner) Option {
	return func(m *Monitor) {
		m.hooks = r
	}
}

// WithNotifier enables sidecar status reports around the action.
func WithNotifier(n Notifier) Option {
	return func(m *Monitor) {
		m.notifier = n
	}
}

func New(cfg Config, sampler Sampler, actuator Actuator, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		sampler:  sampler,
		actuator: actuator,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run samples, evaluates, acts and waits until ctx is cancelled. Measurement
// and action failures end the loop with an error, except while stopping.
func (m *Monitor) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	for ctx.Err() == nil {
		stats.Cycles++

		if err := m.cycle(ctx, &stats); err != nil {
			if ctx.Err() != nil {
				logger.Debug().Err(err).Msg("Ignoring error during shutdown")
				break
			}
			return stats, err
		}

		wait.For(ctx, m.cfg.Interval)
	}

	return stats, nil
}

func (m *Monitor) cycle(ctx context.Context, stats *Stats) error {
	throughput, err := m.sampler.Sample(ctx)
	if err != nil {
		return err
	}

	if throughput > m.cfg.Threshold {
		logger.Debug().
			Int64("throughput_kbps", throughput).
			Int64("threshold_kbps", m.cfg.Threshold).
			Msg("Threshold not crossed, continuing")
		return nil
	}

	if ctx.Err() != nil {
		return nil
	}

	logger.Info().
		Int64("throughput_kbps", throughput).
		Int64("threshold_kbps", m.cfg.Threshold).
		Msg("Threshold crossed, executing command")

	acted, err := m.act(ctx)
	if acted {
		stats.Actions++
	} else if err == nil {
		stats.Vetoes++
	}

	return err
}

// act runs the pre hook, notifications, the action and the post hook. It
// reports false with a nil error when the pre hook vetoed the action.
func (m *Monitor) act(ctx context.Context) (bool, error) {
	if m.hooks != nil && m.cfg.BeforeSleep != "" {
		if err := m.hooks.Run(ctx, m.cfg.BeforeSleep, hooks.PhasePre); err != nil {
			if !errors.HasCode(err, errors.ErrHookVeto) {
				return false, err
			}
			logger.Warn().Err(err).Msg("Before-sleep hooks failed, skipping action this cycle")
			return false, nil
		}
	}

	m.notify(ctx, notify.StatusSleep)

	if err := m.actuator.Act(ctx); err != nil {
		return false, err
	}

	m.notify(ctx, notify.StatusWake)

	if m.hooks != nil && m.cfg.AfterSleep != "" {
		// best effort, failures are logged by the runner
		_ = m.hooks.Run(ctx, m.cfg.AfterSleep, hooks.PhasePost)
	}

	return true, nil
}

func (m *Monitor) notify(ctx context.Context, status notify.Status) {
	if m.notifier != nil {
		m.notifier.Notify(ctx, status)
	}
}
