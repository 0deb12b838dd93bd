package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/znoxx/sleepynas/internal/action"
	"codeberg.org/znoxx/sleepynas/internal/config"
	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/hooks"
	"codeberg.org/znoxx/sleepynas/internal/lock"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"codeberg.org/znoxx/sleepynas/internal/monitor"
	"codeberg.org/znoxx/sleepynas/internal/notify"
	"codeberg.org/znoxx/sleepynas/internal/preflight"
	"codeberg.org/znoxx/sleepynas/internal/probe"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	verbose bool
	label   string
}

// deps are the host facilities the daemon relies on.
type deps struct {
	tools      preflight.Tools
	interfaces preflight.InterfaceLister
}

func main() {
	os.Exit(exitCode(newRootCommand(deps{}).Execute()))
}

// exitCode logs the final error and closes the log file after that last line.
func exitCode(err error) int {
	code := 0
	if err != nil {
		logger.ErrorWithCode(err).Msg("sleepy-nas stopped")
		code = 1
	}

	if cerr := logger.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", cerr)
	}

	return code
}

func newRootCommand(d deps) *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "sleepy-nas [config.ini]",
		Short: "Suspend the host when network traffic stays low",
		Long: `sleepy-nas samples the throughput of one network interface with sar and
runs a command (typically a suspend) whenever it falls to the configured
threshold or below.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go handleSignals(ctx, cancel)

			return run(ctx, path, o, d)
		},
	}

	bindFlags(cmd.Flags(), &o)

	return cmd
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	fs.StringVar(&o.label, "label", "", "Instance label used to name the lock file (overrides [main] label)")
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("Received termination signal, stopping")
		cancel()
	case <-ctx.Done():
	}
}

func run(ctx context.Context, path string, o options, d deps) error {
	logger.Init(o.verbose, logger.IsService())

	cfg, err := config.Load(path, config.WithLabel(o.label))
	if err != nil {
		return err
	}

	if cfg.Log.File != "" {
		logger.Init(o.verbose, logger.IsService(), logger.WithFile(logger.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}))
	}
	logger.Debug().Str("path", path).Str("config", cfg.String()).Msg("Config loaded")

	instance, err := lock.Acquire(cfg.LockDir, cfg.Label)
	if err != nil {
		return err
	}
	defer func() {
		if err := instance.Release(); err != nil {
			logger.Warn().Err(err).Str("path", instance.Path()).Msg("Failed to release instance lock")
		}
	}()

	checker := preflight.New(d.tools, d.interfaces)
	if err := checker.Check(cfg); err != nil {
		return err
	}
	tools := checker.Tools()

	sampler := probe.New(probe.Config{
		Binary:    tools.Sar,
		Window:    cfg.ProbeWindow(),
		Count:     cfg.ProbeCount,
		Interface: cfg.Interface,
	})
	actuator := action.New(cfg.Command, cfg.Backoff())

	opts := []monitor.Option{monitor.WithHooks(hooks.NewRunner(tools.RunParts))}
	if cfg.Sidecar.Enabled {
		opts = append(opts, monitor.WithNotifier(notify.New(cfg.Sidecar.Address, cfg.Sidecar.ServerID, cfg.Sidecar.Timeout)))
	}

	m := monitor.New(monitor.Config{
		Threshold:   cfg.ThresholdValue,
		Interval:    cfg.Interval(),
		BeforeSleep: cfg.Hooks.BeforeSleep,
		AfterSleep:  cfg.Hooks.AfterSleep,
	}, sampler, actuator, opts...)

	logger.Info().
		Str("label", cfg.Label).
		Str("interface", cfg.Interface).
		Int64("threshold_kbps", cfg.ThresholdValue).
		Msg("Monitoring started")

	stats, err := m.Run(ctx)
	logger.Info().
		Int("cycles", stats.Cycles).
		Int("actions", stats.Actions).
		Int("vetoes", stats.Vetoes).
		Msg("Monitoring stopped")

	if err != nil {
		return errors.New().Wrap(errors.ErrMainLoop, err)
	}

	return nil
}
