package probe

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"codeberg.org/znoxx/sleepynas/internal/shell"
)

const DefaultBinary = "sar"

type Config struct {
	// Binary is the sar executable; DefaultBinary when empty.
	Binary    string
	Window    time.Duration
	Count     int
	Interface string
}

// Sampler measures interface throughput with sar.
type Sampler struct {
	cfg Config
}

func New(cfg Config) *Sampler {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}

	return &Sampler{cfg: cfg}
}

// Args returns the sar arguments for one measurement.
func (s *Sampler) Args() []string {
	// sar takes whole seconds; anything below one second would ask for since-boot totals
	window := max(int(s.cfg.Window/time.Second), 1)

	return []string{
		"-n", "DEV",
		"--dec=0",
		"--iface=" + s.cfg.Interface,
		strconv.Itoa(window),
		strconv.Itoa(s.cfg.Count),
	}
}

// Sample runs sar for about Window*Count and returns the summed rx+tx rate in kB/s
// of the Average row. Failures after ctx is cancelled yield MaxThroughput and no error.
func (s *Sampler) Sample(ctx context.Context) (int64, error) {
	errFactory := errors.New()

	logger.Debug().Strs("args", s.Args()).Msg("Running sar")

	var stderr bytes.Buffer
	cmd := shell.Command(ctx, s.cfg.Binary, s.Args()...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		code, _ := shell.ExitCode(err)
		return s.fail(ctx, errFactory.Wrap(errors.ErrMeasurement, err).WithData(struct {
			ExitCode int
			Stderr   string
		}{code, lastLine(stderr.Bytes())}))
	}

	value, err := ParseAverage(bytes.NewReader(out), s.cfg.Interface)
	if err != nil {
		return s.fail(ctx, err)
	}

	logger.Debug().Str("interface", s.cfg.Interface).Int64("throughput_kbps", value).Msg("sar call executed")

	return value, nil
}

func (s *Sampler) fail(ctx context.Context, err error) (int64, error) {
	if ctx.Err() != nil {
		logger.Debug().Err(err).Msg("Ignoring measurement failure during shutdown")
		return MaxThroughput, nil
	}

	return 0, err
}

func lastLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}

	return string(b)
}
