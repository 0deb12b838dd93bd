package config

import "time"

// Option defines a configuration option that can be passed to Load
type Option func(*options)

// options holds internal configuration options
type options struct {
	label string
}

// WithLabel overrides the instance label read from the configuration file
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// ValidationError represents a configuration validation error
type ValidationError interface {
	error
	// Field returns the name of the invalid field
	Field() string
	// Value returns the invalid value
	Value() interface{}
	// Reason returns why the value is invalid
	Reason() string
}

type fieldError struct {
	field  string
	value  interface{}
	reason string
}

func (e *fieldError) Error() string {
	return e.field + " " + formatValue(e.value) + " is invalid: " + e.reason
}

func (e *fieldError) Field() string      { return e.field }
func (e *fieldError) Value() interface{} { return e.value }
func (e *fieldError) Reason() string     { return e.reason }

// SidecarConfig enables status notifications when Enabled is set.
type SidecarConfig struct {
	Enabled  bool
	Address  string
	ServerID string
	Timeout  time.Duration
}

// HooksConfig holds optional run-parts directories. Empty means disabled.
type HooksConfig struct {
	BeforeSleep string
	AfterSleep  string
}

// LogConfig configures the optional rotating log file.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}
