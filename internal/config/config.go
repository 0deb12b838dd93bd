package config

import (
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"github.com/spf13/viper"
)

const (
	DefaultPath = "sleepy_nas.ini"

	DefaultProbeDuration          = 300.0
	DefaultProbeCount             = 2
	DefaultProbeInterval          = 300.0
	DefaultThresholdValue         = 8
	DefaultInterface              = "eth0"
	DefaultCommand                = "suspend_stub_command"
	DefaultCommandBackoffInterval = 30.0
	DefaultLabel                  = "default"
	DefaultSidecarTimeout         = 2.0
	DefaultLogMaxSizeMB           = 10
	DefaultLogMaxBackups          = 3
	DefaultLogMaxAgeDays          = 28
)

// Config is loaded once at startup and never modified afterwards.
type Config struct {
	ProbeDuration          float64
	ProbeCount             int
	ProbeInterval          float64
	ThresholdValue         int64
	Command                string
	Interface              string
	CommandBackoffInterval float64
	Label                  string
	LockDir                string
	Sidecar                SidecarConfig
	Hooks                  HooksConfig
	Log                    LogConfig
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		ProbeDuration:          DefaultProbeDuration,
		ProbeCount:             DefaultProbeCount,
		ProbeInterval:          DefaultProbeInterval,
		ThresholdValue:         DefaultThresholdValue,
		Command:                DefaultCommand,
		Interface:              DefaultInterface,
		CommandBackoffInterval: DefaultCommandBackoffInterval,
		Label:                  DefaultLabel,
		LockDir:                os.TempDir(),
		Sidecar: SidecarConfig{
			Timeout: seconds(DefaultSidecarTimeout),
		},
		Log: LogConfig{
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}
}

// Load reads the INI file at path. A missing file is not an error: defaults are used.
func Load(path string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.SetConfigType("ini")
	v.SetConfigFile(path)

	cfg := Default()

	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err).WithData(path)
		}
		logger.Warn().Str("path", path).Msg("Config file not found, using defaults")
	} else if err := cfg.apply(v); err != nil {
		return nil, err
	}

	if o.label != "" {
		cfg.Label = o.label
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func (c *Config) apply(v *viper.Viper) error {
	var err error

	if v.IsSet("main.probe_duration") {
		if c.ProbeDuration, err = getFloat(v, "main.probe_duration"); err != nil {
			return err
		}
	}
	if v.IsSet("main.probe_count") {
		if c.ProbeCount, err = getInt(v, "main.probe_count"); err != nil {
			return err
		}
	}
	if v.IsSet("main.probe_interval") {
		if c.ProbeInterval, err = getFloat(v, "main.probe_interval"); err != nil {
			return err
		}
	}
	if v.IsSet("main.threshold_value") {
		var threshold int
		if threshold, err = getInt(v, "main.threshold_value"); err != nil {
			return err
		}
		c.ThresholdValue = int64(threshold)
	}
	if v.IsSet("main.command") {
		c.Command = strings.TrimSpace(v.GetString("main.command"))
	}
	if v.IsSet("main.interface") {
		c.Interface = strings.TrimSpace(v.GetString("main.interface"))
	}
	if v.IsSet("main.command_backoff_interval") {
		if c.CommandBackoffInterval, err = getFloat(v, "main.command_backoff_interval"); err != nil {
			return err
		}
	}
	if v.IsSet("main.label") {
		c.Label = strings.TrimSpace(v.GetString("main.label"))
	}
	if v.IsSet("main.lock_dir") {
		c.LockDir = strings.TrimSpace(v.GetString("main.lock_dir"))
	}

	if v.IsSet("sidecar.sidecar_address") {
		c.Sidecar.Enabled = true
		c.Sidecar.Address = strings.TrimSpace(v.GetString("sidecar.sidecar_address"))
		c.Sidecar.ServerID = strings.TrimSpace(v.GetString("sidecar.sidecar_server_id"))
	}
	if v.IsSet("sidecar.timeout") {
		timeout, err := getFloat(v, "sidecar.timeout")
		if err != nil {
			return err
		}
		if !(timeout > 0) {
			return invalid("timeout", timeout, "must be greater than zero")
		}
		if timeout > maxSeconds {
			return invalid("timeout", timeout, tooLong)
		}
		c.Sidecar.Timeout = seconds(timeout)
	}

	c.Hooks.BeforeSleep = strings.TrimSpace(v.GetString("hooks.before_sleep"))
	c.Hooks.AfterSleep = strings.TrimSpace(v.GetString("hooks.after_sleep"))

	if v.IsSet("log.file") {
		c.Log.File = strings.TrimSpace(v.GetString("log.file"))
	}
	for key, dst := range map[string]*int{
		"log.max_size_mb":  &c.Log.MaxSizeMB,
		"log.max_backups":  &c.Log.MaxBackups,
		"log.max_age_days": &c.Log.MaxAgeDays,
	} {
		if !v.IsSet(key) {
			continue
		}
		if *dst, err = getInt(v, key); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	switch {
	case !(c.ProbeDuration > 0):
		return invalid("probe_duration", c.ProbeDuration, "must be greater than zero")
	case c.ProbeDuration > maxSeconds:
		return invalid("probe_duration", c.ProbeDuration, tooLong)
	case c.ProbeCount <= 0:
		return invalid("probe_count", c.ProbeCount, "must be greater than zero")
	case !(c.ProbeInterval >= 0):
		return invalid("probe_interval", c.ProbeInterval, "must not be negative")
	case c.ProbeInterval > maxSeconds:
		return invalid("probe_interval", c.ProbeInterval, tooLong)
	case c.ThresholdValue < 0:
		return invalid("threshold_value", c.ThresholdValue, "must not be negative")
	case !(c.CommandBackoffInterval >= 0):
		return invalid("command_backoff_interval", c.CommandBackoffInterval, "must not be negative")
	case c.CommandBackoffInterval > maxSeconds:
		return invalid("command_backoff_interval", c.CommandBackoffInterval, tooLong)
	case c.Command == "":
		return invalid("command", c.Command, "must not be empty")
	case c.Interface == "":
		return invalid("interface", c.Interface, "must not be empty")
	case c.Label == "" || strings.ContainsAny(c.Label, `/\`):
		return invalid("label", c.Label, "must be a non-empty name without path separators")
	case c.LockDir == "":
		return invalid("lock_dir", c.LockDir, "must not be empty")
	case c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0:
		return invalid("log", c.Log, "rotation limits must not be negative")
	}

	if c.Sidecar.Enabled {
		if c.Sidecar.ServerID == "" {
			return invalid("sidecar_server_id", c.Sidecar.ServerID, "required when sidecar_address is set")
		}
		endpoint, err := normalizeEndpoint(c.Sidecar.Address)
		if err != nil {
			return invalid("sidecar_address", c.Sidecar.Address, err.Error())
		}
		c.Sidecar.Address = endpoint
	}

	return nil
}

// ProbeWindow is the length of a single sar sampling window.
func (c *Config) ProbeWindow() time.Duration {
	return seconds(c.ProbeDuration)
}

// Interval is the wait between two sampling cycles.
func (c *Config) Interval() time.Duration {
	return seconds(c.ProbeInterval)
}

// Backoff is the cooldown after a successful action.
func (c *Config) Backoff() time.Duration {
	return seconds(c.CommandBackoffInterval)
}

func (c *Config) String() string {
	return fmt.Sprintf("probe_duration: %g, probe_count: %d, probe_interval: %g, threshold_value: %d, "+
		"command: %s, interface: %s, command_backoff_interval: %g, sidecar: %t, before_sleep: %q, after_sleep: %q",
		c.ProbeDuration, c.ProbeCount, c.ProbeInterval, c.ThresholdValue,
		c.Command, c.Interface, c.CommandBackoffInterval, c.Sidecar.Enabled,
		c.Hooks.BeforeSleep, c.Hooks.AfterSleep)
}

// normalizeEndpoint accepts "host:port" as shorthand for "http://host:port".
func normalizeEndpoint(address string) (string, error) {
	if address == "" {
		return "", fmt.Errorf("must not be empty")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	u, err := url.Parse(address)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func getFloat(v *viper.Viper, key string) (float64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalid(fieldName(key), raw, "not a number")
	}

	return f, nil
}

func getInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(fieldName(key), raw, "not an integer")
	}

	return i, nil
}

func fieldName(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}

	return key
}

func invalid(field string, value interface{}, reason string) error {
	return errors.New().Wrap(errors.ErrInvalidConfig, &fieldError{field: field, value: value, reason: reason})
}

func formatValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}

	return fmt.Sprint(v)
}

// maxSeconds is the longest span a time.Duration can hold; it also rejects +Inf.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

const tooLong = "exceeds the longest supported duration"

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
