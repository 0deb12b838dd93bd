package preflight

import (
	"os"
	"os/exec"

	"codeberg.org/znoxx/sleepynas/internal/config"
	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/hooks"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"codeberg.org/znoxx/sleepynas/internal/probe"
	"github.com/shirou/gopsutil/v3/net"
)

// Tools names the external utilities; empty fields mean the defaults.
type Tools struct {
	Sar      string
	RunParts string
}

// InterfaceLister returns the names of the host's network interfaces.
type InterfaceLister func() ([]string, error)

// HostInterfaces lists interfaces through gopsutil.
func HostInterfaces() ([]string, error) {
	stats, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(stats))
	for _, s := range stats {
		names = append(names, s.Name)
	}

	return names, nil
}

type Checker struct {
	tools      Tools
	interfaces InterfaceLister
}

func New(tools Tools, interfaces InterfaceLister) *Checker {
	if tools.Sar == "" {
		tools.Sar = probe.DefaultBinary
	}
	if tools.RunParts == "" {
		tools.RunParts = hooks.DefaultBinary
	}
	if interfaces == nil {
		interfaces = HostInterfaces
	}

	return &Checker{tools: tools, interfaces: interfaces}
}

// Tools returns the resolved utility paths.
func (c *Checker) Tools() Tools {
	return c.tools
}

// Check verifies that everything cfg depends on is present. Utility paths are
// resolved in place so later invocations do not depend on PATH lookups.
func (c *Checker) Check(cfg *config.Config) error {
	errFactory := errors.New()

	sar, err := exec.LookPath(c.tools.Sar)
	if err != nil {
		return errFactory.Wrap(errors.ErrMissingDependency, err).WithData("sar")
	}
	c.tools.Sar = sar
	logger.Info().Str("path", sar).Msg("sar sanity check passed")

	if cfg.Hooks.BeforeSleep != "" || cfg.Hooks.AfterSleep != "" {
		runParts, err := exec.LookPath(c.tools.RunParts)
		if err != nil {
			return errFactory.Wrap(errors.ErrMissingDependency, err).WithData("run-parts")
		}
		c.tools.RunParts = runParts

		for _, dir := range []string{cfg.Hooks.BeforeSleep, cfg.Hooks.AfterSleep} {
			if dir == "" {
				continue
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return errFactory.WithData(errors.ErrInvalidConfig, "hook directory "+dir+" is not a directory")
			}
		}
	}

	names, err := c.interfaces()
	if err != nil {
		logger.Warn().Err(err).Msg("Could not list network interfaces, skipping interface check")
		return nil
	}
	for _, name := range names {
		if name == cfg.Interface {
			return nil
		}
	}

	return errFactory.WithData(errors.ErrInvalidConfig, struct {
		Interface string
		Available []string
	}{cfg.Interface, names})
}
